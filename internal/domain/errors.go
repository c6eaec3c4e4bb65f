package domain

import "errors"

var (
	ErrUnknownTopic = errors.New("unknown subscription topic")
	ErrHubClosed    = errors.New("socket hub is closed")
)
