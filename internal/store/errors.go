package store

import (
	"errors"
	"fmt"
)

// ErrStaleRevision marks a write that lost to a newer stored revision.
var ErrStaleRevision = errors.New("stale revision")

// StaleWriteError reports the revision that kept a write from landing.
type StaleWriteError struct {
	Table  string
	Stored int64
	Wrote  int64
}

func (e *StaleWriteError) Error() string {
	return fmt.Sprintf("%s: revision %d is older than stored revision %d", e.Table, e.Wrote, e.Stored)
}

func (e *StaleWriteError) Is(target error) bool { return target == ErrStaleRevision }
