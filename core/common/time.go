package common

import (
	"time"
)

// SecondsPerDay - seconds in one day, used for day-boundary rounding.
const SecondsPerDay = 24 * 60 * 60

/*Timestamp - just a wrapper to control the json encoding */
type Timestamp int64

/*Now - current datetime */
func Now() Timestamp {
	return Timestamp(time.Now().Unix())
}

// ToTime - converts the common.Timestamp to time.Time
func ToTime(ts Timestamp) time.Time {
	return time.Unix(int64(ts), 0)
}

// PrevDayBoundary rounds the timestamp down to the previous midnight (UTC).
func (ts Timestamp) PrevDayBoundary() Timestamp {
	return ts - ts%SecondsPerDay
}

// AddDays returns the timestamp shifted forward by the given number of days.
func (ts Timestamp) AddDays(days uint32) Timestamp {
	return ts + Timestamp(days)*SecondsPerDay
}
