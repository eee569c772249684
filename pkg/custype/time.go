package custype

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type TimeMillisecond int64

func ToTimeMillisecond(t time.Time) TimeMillisecond {
	return TimeMillisecond(t.UnixMilli())
}
func (t TimeMillisecond) ToInt64() int64 {
	return int64(t)
}
func (t TimeMillisecond) ToTime() time.Time {
	return time.UnixMilli(int64(t))
}
func (t TimeMillisecond) Value() (driver.Value, error) {
	return int64(t), nil
}
func (t *TimeMillisecond) Scan(src any) error {
	switch s := src.(type) {
	case time.Time:
		*t = ToTimeMillisecond(s)
	case int64:
		*t = TimeMillisecond(s)
	case nil:
		*t = 0
	default:
		return fmt.Errorf("unsupported Scan, storing driver.Value type %T into type TimeMillisecond", src)
	}
	return nil
}
func (t TimeMillisecond) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// Duration reads either a Go duration string ("1s", "500ms") or a plain number of milliseconds.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		*d = Duration(time.Duration(val * float64(time.Millisecond)))
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*d = Duration(parsed)
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration %s", b)
	}
	return nil
}
