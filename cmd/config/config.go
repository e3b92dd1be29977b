package config

// Package config in cmd provides a thin wrapper around the shared
// configuration loader in pkg/config, exposing the loaded configuration
// via the AppConfig variable for command line utilities.

import (
	pkgconfig "github.com/DytallixHQ/Dytallix-sub005/pkg/config"
)

// AppConfig holds the currently loaded configuration for command line
// utilities.
var AppConfig pkgconfig.Config

// LoadConfig loads the node configuration from the environment and
// stores it in AppConfig. Errors panic: CLI initialisation has nothing
// sensible to do but abort.
func LoadConfig() {
	cfg, err := pkgconfig.Load()
	if err != nil {
		panic(err)
	}
	AppConfig = *cfg
}
