// Package config loads config.yaml for homectl core.
//
// Load reads the file, applies HOMECTL_* environment overrides and then
// validates the result. Secrets such as the MQTT password and the InfluxDB
// token belong in the environment rather than the file.
//
// Each entry under integrations stays a raw YAML node: config reads only its
// plugin key and the integration kind decodes the rest.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	entries, err := cfg.IntegrationEntries()
package config
