package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to trigger a job on a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")
)
