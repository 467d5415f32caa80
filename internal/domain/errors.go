package domain

import "errors"

var (
	ErrEventNotFound           = errors.New("event not found")
	ErrThemeNotFound           = errors.New("theme not found")
	ErrEntryNotFound           = errors.New("entry not found")
	ErrHighScoreNotFound       = errors.New("high score not found")
	ErrTournamentEntryNotFound = errors.New("tournament entry not found")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrReadOnly                = errors.New("write in read-only transaction")
)
