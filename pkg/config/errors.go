package config

import "errors"

var (
	ErrParsingConfig = errors.New("failed to parse config")
	ErrNilPointer    = errors.New("config target is a nil pointer")
)
