package plugin

import "errors"

// Plugin errors.
var (
	ErrNotRegistered     = errors.New("plugin not registered")
	ErrAlreadyRegistered = errors.New("plugin already registered")
	ErrNoNotifier        = errors.New("manager has no notifier")
)
