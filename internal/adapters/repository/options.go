package repository

import (
	"os"
	"time"
)

// Default store configuration constants.
const (
	defaultFilePerm os.FileMode = 0o644
	defaultDirPerm  os.FileMode = 0o755
)

type settings struct {
	now      func() time.Time
	filePerm os.FileMode
	dirPerm  os.FileMode
}

func newSettings(opts []Option) settings {
	s := settings{
		now:      time.Now,
		filePerm: defaultFilePerm,
		dirPerm:  defaultDirPerm,
	}

	// Apply all options
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option applies a configuration option to a store.
type Option func(*settings)

// WithClock sets the clock used to stamp UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithFilePerm sets the permission bits of guild files. Ignored by MemoryStore.
func WithFilePerm(perm os.FileMode) Option {
	return func(s *settings) {
		if perm != 0 {
			s.filePerm = perm
		}
	}
}

// WithDirPerm sets the permission bits used when creating the data directory.
func WithDirPerm(perm os.FileMode) Option {
	return func(s *settings) {
		if perm != 0 {
			s.dirPerm = perm
		}
	}
}
