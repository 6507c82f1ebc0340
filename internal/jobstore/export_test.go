package jobstore

import "time"

// SetClock replaces the store's timestamp source.
func SetClock(s *Store, now func() time.Time) {
	s.now = now
}

// BaseSchema is the version 1 schema.
var BaseSchema = baseSchema
