// Package validation checks configuration and constructor arguments.
//
// Struct tag validation (go-playground/validator) is used for configuration
// structs loaded from files; the programmatic Validator is used by pod
// constructors where the limits depend on other arguments.
//
//	type PodConfig struct {
//	    PartitionSize int `mapstructure:"partition_size" validate:"gte=1"`
//	}
//	err := validation.Validate(cfg)
//
//	v := validation.New()
//	v.Min("partition_count", n, 2)
//	err := v.Validate()
package validation
