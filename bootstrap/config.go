package bootstrap

import (
	"github.com/kbukum/podflow/config"
)

// Config is satisfied by any struct embedding config.ServiceConfig by value.
//
//	type WorkerConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Samples int `mapstructure:"samples"`
//	}
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
