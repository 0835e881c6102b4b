package core

import "errors"

var (
	ErrUnknownChannel      = errors.New("unknown talk channel")
	ErrUnknownGuildSetting = errors.New("talk system not set up in this guild")
	ErrUnknownChallenge    = errors.New("unknown or expired password challenge")
	ErrAlreadyExists       = errors.New("talk channel already registered")
	ErrIncorrectPassword   = errors.New("incorrect password")
	ErrPasswordMissing     = errors.New("password required but not provided")
	ErrNotCreator          = errors.New("only the talk creator may do this")
	ErrInvalidRequest      = errors.New("invalid talk request")

	// Platform failures. Adapters wrap their native errors with these.
	ErrPlatformForbidden = errors.New("platform: forbidden")
	ErrPlatformNotFound  = errors.New("platform: not found")
)
