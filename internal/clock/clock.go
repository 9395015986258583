package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// AfterFunc schedules fn after d. Override in tests to control deadline
// firing without real waits.
var AfterFunc = time.AfterFunc

// After calls AfterFunc and returns the timer so callers can stop it.
func After(d time.Duration, fn func()) *time.Timer { return AfterFunc(d, fn) }
