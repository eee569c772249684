package controller

import (
	"time"

	"edgepoll/edge_module/db"
	"edgepoll/edge_module/global"
	"edgepoll/edge_module/metrics"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	journalCleanupSpec = "@daily"
	hubStatsSpec       = "@every 1m"
)

// scheduleHousekeeping adds the periodic jobs to global.CronJob. The returned func removes them.
func scheduleHousekeeping(holdDays int, h Hub) (func(), error) {
	if global.CronJob == nil {
		return func() {}, nil
	}
	var ids []cron.EntryID
	stop := func() {
		for _, id := range ids {
			global.CronJob.Remove(id)
		}
	}
	id, err := global.CronJob.AddFunc(journalCleanupSpec, func() { cleanJournal(holdDays, time.Now()) })
	if err != nil {
		return nil, err
	}
	ids = append(ids, id)
	id, err = global.CronJob.AddFunc(hubStatsSpec, func() { logHubStats(h) })
	if err != nil {
		stop()
		return nil, err
	}
	ids = append(ids, id)
	return stop, nil
}

func cleanJournal(holdDays int, now time.Time) {
	if !db.Enabled() {
		return
	}
	cutoff := now.AddDate(0, 0, -holdDays).UnixMilli()
	n, err := db.CleanAlertLog(cutoff)
	if err != nil {
		zap.L().Error("clean alert journal", zap.Error(err))
		return
	}
	metrics.JournalRowsCleanedTotal.Add(float64(n))
	zap.L().Info("alert journal cleaned", zap.Int64("rows", n), zap.Int("hold_days", holdDays))
}

func logHubStats(h Hub) {
	s := h.Stats()
	zap.L().Info("hub stats",
		zap.Int64("received", s.Received),
		zap.Int64("confirmed", s.Confirmed),
		zap.Int64("failed", s.Failed))
}
