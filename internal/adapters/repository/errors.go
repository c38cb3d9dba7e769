package repository

import "errors"

// Sentinel kinds for guild store errors.
var (
	ErrNotFound       = errors.New("guild not found")
	ErrInvalidGuildID = errors.New("invalid guild id")
	ErrCorruptRecord  = errors.New("corrupt guild record")
	ErrClosed         = errors.New("store closed")
)
