package logging

import (
	"statekv/internal/config"
)

// DevelopmentLoggingConfig returns logging configuration optimized for development
func DevelopmentLoggingConfig() config.LoggingConfig {
	return config.LoggingConfig{
		Level:                "debug",
		Format:               "console", // Human-readable format for development
		Output:               "stdout",
		EnableCorrelationIDs: true,
		EnableStateLogging:   true, // Log every engine call in dev
	}
}

// ProductionLoggingConfig returns logging configuration optimized for production
func ProductionLoggingConfig() config.LoggingConfig {
	return config.LoggingConfig{
		Level:                "info",
		Format:               "json", // Machine-readable format for production
		Output:               "stdout",
		EnableCorrelationIDs: true,
		EnableStateLogging:   false, // Reduce noise on the hot path
	}
}

// TestLoggingConfig returns logging configuration optimized for testing
func TestLoggingConfig() config.LoggingConfig {
	return config.LoggingConfig{
		Level:                "error", // Minimal logging during tests
		Format:               "json",
		Output:               "stderr",
		EnableCorrelationIDs: false,
		EnableStateLogging:   false,
	}
}

// SetupEnvironmentLogging configures logging based on environment
func SetupEnvironmentLogging(cfg *config.Config, environment string) {
	switch environment {
	case "development", "dev":
		cfg.Logging = DevelopmentLoggingConfig()
	case "production", "prod":
		cfg.Logging = ProductionLoggingConfig()
	case "test", "testing":
		cfg.Logging = TestLoggingConfig()
	}
}
