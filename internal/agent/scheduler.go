package agent

import (
	"math"
	"time"
)

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler defers calls. The Manager uses it for reconnect delays so tests
// can control time.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// WallClock schedules with time.AfterFunc.
type WallClock struct{}

func (WallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// backoffFactor is the growth between consecutive reconnect delays.
const backoffFactor = 1.5

// BackoffDelay returns the delay before reconnect attempt n (1-based):
// base for the first attempt, then 1.5 times the previous delay.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(base) * math.Pow(backoffFactor, float64(attempt-1)))
}
