package config

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Load and Validate.
var (
	ErrLoadConfig    = errors.New("load config failed")
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidStore and ErrInvalidRules narrow ErrInvalidConfig.
	ErrInvalidStore = fmt.Errorf("%w: store", ErrInvalidConfig)
	ErrInvalidRules = fmt.Errorf("%w: group rules", ErrInvalidConfig)
)
