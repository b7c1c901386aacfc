// Package config loads and validates formtap configuration.
//
// # Usage
//
//	cfg, err := config.Load("config.json")
//	if err != nil {
//		return err
//	}
//	config.ApplyOverrides(cfg, config.NewViper())
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
//
// # Environment Variables
//
// Files may reference the environment with ${VAR_NAME}. Every top-level
// setting can also be overridden with FORMTAP_<KEY>, for example
// FORMTAP_TOKEN or FORMTAP_LOG_LEVEL.
package config
