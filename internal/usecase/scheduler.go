package usecase

import (
	"time"

	"speakfluent/internal/ports"
)

// RealScheduler arms callbacks on the wall clock.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) ports.Timer {
	return time.AfterFunc(d, f)
}
