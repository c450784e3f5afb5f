package config

import (
	"fmt"
	"slices"

	"github.com/kbukum/podflow/logger"
	"github.com/kbukum/podflow/validation"
)

// ServiceConfig is the root configuration of a process hosting pods.
// Projects with extra sections embed it:
//
//	type WorkerConfig struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Sources SourceConfig `yaml:"sources" mapstructure:"sources"`
//	}
type ServiceConfig struct {
	Name          string              `yaml:"name" mapstructure:"name" validate:"required"`
	Environment   string              `yaml:"environment" mapstructure:"environment"`
	Version       string              `yaml:"version" mapstructure:"version"`
	Debug         bool                `yaml:"debug" mapstructure:"debug"`
	Logging       logger.Config       `yaml:"logging" mapstructure:"logging"`
	Pod           PodConfig           `yaml:"pod" mapstructure:"pod"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

var environments = []string{"development", "staging", "production"}

// GetServiceConfig is promoted to embedding structs.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}

// ApplyDefaults fills every unset section.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.Logging.ServiceName == "" && c.Name != "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()
	c.Pod.ApplyDefaults()
	c.Observability.ApplyDefaults(c)
}

// Validate checks the whole tree. Call ApplyDefaults first.
func (c *ServiceConfig) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if !slices.Contains(environments, c.Environment) {
		return fmt.Errorf("config.environment must be one of %v (got: %s)", environments, c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}
