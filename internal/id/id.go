package id

import "github.com/google/uuid"

// New returns a new UUIDv4 string.
func New() string { return uuid.NewString() }

// Short returns the first 8 hex characters of a new UUIDv4, used for
// temp-file suffixes where a full UUID is noise.
func Short() string { return uuid.NewString()[:8] }
