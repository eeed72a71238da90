package orchestrator

import "errors"

var (
	// ErrNoPluginSource is returned when the compiler is built without a registry
	ErrNoPluginSource = errors.New("plugin source is required")

	// ErrInvalidConfig is returned when a required path is not configured
	ErrInvalidConfig = errors.New("invalid orchestrator configuration")
)
