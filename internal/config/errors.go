package config

import "errors"

var (
	ErrInvalidConfig     = errors.New("invalid config")
	ErrUnsupportedFormat = errors.New("unsupported config format")
)
