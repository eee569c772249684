package db

// CleanAlertLog deletes transitions older than cutoff milliseconds, keeping the latest row of each loop
// so the current state survives retention.
func CleanAlertLog(cutoff int64) (int64, error) {
	d, err := handle()
	if err != nil {
		return 0, err
	}
	res, err := d.Exec(`delete from alert_log where changed_at < ?
and ROWID not in (select max(ROWID) from alert_log group by loop_name)`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
