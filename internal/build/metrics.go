package build

import (
	"sync"
	"time"
)

// BuildMetrics tracks build command outcomes.
type BuildMetrics struct {
	TotalBuilds      int64         `json:"total_builds"`
	SuccessfulBuilds int64         `json:"successful_builds"`
	FailedBuilds     int64         `json:"failed_builds"`
	Notifications    int64         `json:"notifications"`
	AverageDuration  time.Duration `json:"average_duration"`
	TotalDuration    time.Duration `json:"total_duration"`
	LastError        string        `json:"last_error,omitempty"`
	mutex            sync.RWMutex
}

// NewBuildMetrics creates a new build metrics tracker
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordBuild records the outcome of one command run.
func (bm *BuildMetrics) RecordBuild(duration time.Duration, err error) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalBuilds++
	bm.TotalDuration += duration

	if err != nil {
		bm.FailedBuilds++
		bm.LastError = err.Error()
	} else {
		bm.SuccessfulBuilds++
	}

	bm.AverageDuration = bm.TotalDuration / time.Duration(bm.TotalBuilds)
}

// RecordNotification counts a reload notification sent after a cycle.
func (bm *BuildMetrics) RecordNotification() {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()
	bm.Notifications++
}

// GetSnapshot returns a snapshot of current metrics
func (bm *BuildMetrics) GetSnapshot() BuildMetrics {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()
	return BuildMetrics{
		TotalBuilds:      bm.TotalBuilds,
		SuccessfulBuilds: bm.SuccessfulBuilds,
		FailedBuilds:     bm.FailedBuilds,
		Notifications:    bm.Notifications,
		AverageDuration:  bm.AverageDuration,
		TotalDuration:    bm.TotalDuration,
		LastError:        bm.LastError,
	}
}
