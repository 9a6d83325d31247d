// Package timestamp holds the unix-second timestamp type used for an
// event's created_at field and a filter's since/until bounds.
package timestamp

import "time"

// T is a signed unix-second timestamp, matching event.E.CreatedAt's wire
// representation.
type T int64

// Now returns the current wall-clock time as a T.
func Now() T { return T(time.Now().Unix()) }

// Time converts a T to a time.Time.
func (t T) Time() time.Time { return time.Unix(int64(t), 0) }

// I64 returns the timestamp as an int64.
func (t T) I64() int64 { return int64(t) }
