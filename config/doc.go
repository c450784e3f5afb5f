// Package config loads podflow service configuration.
//
// Values come from a YAML file, an optional .env file and the process
// environment, in that order of precedence (environment wins). Viper does
// the merging; godotenv loads .env files.
//
//	var cfg config.ServiceConfig
//	if err := config.Load("podflow-worker", &cfg); err != nil {
//	    return err
//	}
//
// Nested keys can be set from the environment with underscores, for example
// POD_PARTITION_SIZE=1024 or POD_LOCK_TIMEOUT=2s.
package config
