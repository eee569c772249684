package custype

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr assert.ErrorAssertionFunc
	}{
		{name: "string", in: `"1s"`, want: time.Second, wantErr: assert.NoError},
		{name: "compound", in: `"1m30s"`, want: 90 * time.Second, wantErr: assert.NoError},
		{name: "millis", in: `10000`, want: 10 * time.Second, wantErr: assert.NoError},
		{name: "zero", in: `0`, want: 0, wantErr: assert.NoError},
		{name: "null", in: `null`, want: 0, wantErr: assert.NoError},
		{name: "bad string", in: `"soon"`, wantErr: assert.Error},
		{name: "bool", in: `true`, wantErr: assert.Error},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if !tt.wantErr(t, err, fmt.Sprintf("Unmarshal(%s)", tt.in)) {
				return
			}
			assert.Equal(t, tt.want, d.Std())
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration(3 * time.Second))
	assert.NoError(t, err)
	assert.Equal(t, `"3s"`, string(b))
}

func TestTimeMillisecond(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	ms := ToTimeMillisecond(now)
	assert.EqualValues(t, 1700000000123, ms.ToInt64())
	assert.True(t, now.Equal(ms.ToTime()))
	assert.Equal(t, "1700000000123", ms.String())

	var scanned TimeMillisecond
	assert.NoError(t, scanned.Scan(int64(42)))
	assert.EqualValues(t, 42, scanned)
	assert.NoError(t, scanned.Scan(nil))
	assert.EqualValues(t, 0, scanned)
	assert.Error(t, scanned.Scan("x"))
}
