// Package config handles loading and validating lightify2mqtt configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Command-line flags are applied by the caller after Load, so an explicit
// flag wins over both the file and the environment.
//
// Security Considerations:
//   - Cloud credentials should be set via environment variables or flags
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("/etc/lightify2mqtt/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.Normalize()
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config
