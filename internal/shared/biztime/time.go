// Package biztime centralises clock access. Storage and transport use UTC;
// the business location is only used for scheduling.
package biztime

import (
	"fmt"
	"sync"
	"time"
)

const DefaultTimezone = "Asia/Shanghai"

var (
	bizLocation     *time.Location
	bizLocationOnce sync.Once
	initErr         error
)

// Init loads the business timezone once. Empty tz selects DefaultTimezone.
func Init(tz string) error {
	bizLocationOnce.Do(func() {
		if tz == "" {
			tz = DefaultTimezone
		}
		bizLocation, initErr = time.LoadLocation(tz)
	})
	return initErr
}

func Location() *time.Location {
	if err := Init(""); err != nil {
		panic(fmt.Sprintf("biztime: failed to load default timezone: %v", err))
	}
	return bizLocation
}

func NowUTC() time.Time {
	return time.Now().UTC()
}

// Clock is injected wherever tests need to control time.
type Clock func() time.Time

// SystemClock is the production Clock.
func SystemClock() time.Time {
	return NowUTC()
}

// OrSystem returns c, or SystemClock when c is nil.
func (c Clock) OrSystem() Clock {
	if c == nil {
		return SystemClock
	}
	return c
}
