// Zap logger construction with a service namespace.
package infra

import "go.uber.org/zap"

// NewLogger builds the process-wide logger. All components receive it by
// injection; nothing logs through a package-level global.
func NewLogger(namespace string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.InitialFields = map[string]interface{}{
		"namespace": namespace,
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
