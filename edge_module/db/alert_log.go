package db

import (
	"edgepoll/pkg/custype"
)

type AlertLog struct {
	RowId     int64                   `json:"row_id"`
	Loop      string                  `json:"loop"`
	Alert     bool                    `json:"alert"`
	Value     float64                 `json:"value"`
	ChangedAt custype.TimeMillisecond `json:"changed_at"`
}

func SaveAlertLog(loop string, alert bool, value float64, changedAt int64) (int64, error) {
	d, err := handle()
	if err != nil {
		return 0, err
	}
	res, err := d.Exec("insert into alert_log(loop_name, alert, value, changed_at) values (?,?,?,?)", loop, alert, value, changedAt)
	return checkResultLastInsertId(res, err)
}

// GetLatestAlertStates returns the last transition of every loop.
func GetLatestAlertStates() ([]AlertLog, error) {
	return queryAlertLogs(`select ROWID, loop_name, alert, value, changed_at from alert_log
where ROWID in (select max(ROWID) from alert_log group by loop_name) order by loop_name`)
}

func GetAlertLogAfter(after int64) ([]AlertLog, error) {
	return queryAlertLogs(`select ROWID, loop_name, alert, value, changed_at from alert_log where ROWID>? order by ROWID`, after)
}

func queryAlertLogs(query string, args ...any) ([]AlertLog, error) {
	h, err := handle()
	if err != nil {
		return nil, err
	}
	rows, err := h.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var (
		d  AlertLog
		ds []AlertLog
	)
	for rows.Next() {
		if err = rows.Scan(&d.RowId, &d.Loop, &d.Alert, &d.Value, &d.ChangedAt); err != nil {
			return nil, err
		}
		ds = append(ds, d)
	}
	return ds, rows.Err()
}
