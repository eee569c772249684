package project

import "sync"

var (
	releaseMu   sync.Mutex
	releaseJobs []func()
)

// RegisterReleaseFunc queues f to run at shutdown. Jobs run in reverse registration order.
func RegisterReleaseFunc(f func()) {
	releaseMu.Lock()
	defer releaseMu.Unlock()
	releaseJobs = append(releaseJobs, f)
}

// CallReleaseFunc runs and forgets every registered job, so a second call is a no-op.
func CallReleaseFunc() {
	releaseMu.Lock()
	jobs := releaseJobs
	releaseJobs = nil
	releaseMu.Unlock()
	for i := len(jobs) - 1; i >= 0; i-- {
		jobs[i]()
	}
}
