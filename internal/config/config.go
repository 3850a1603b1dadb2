package config

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/caarlos0/env/v11"
)

// validator is implemented by sections with invariants env tags cannot
// express.
type validator interface {
	Validate() error
}

// New parses environment variables into T and validates every top-level
// section that implements Validate.
func New[T any]() (T, error) {
	var cfg T
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := validate(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func validate(cfg any) error {
	var errs []error
	if v, ok := cfg.(validator); ok {
		errs = append(errs, v.Validate())
	}

	rv := reflect.ValueOf(cfg)
	if rv.Kind() == reflect.Struct {
		for i := range rv.NumField() {
			field := rv.Field(i)
			if !field.CanInterface() {
				continue
			}
			if v, ok := field.Interface().(validator); ok {
				if err := v.Validate(); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", rv.Type().Field(i).Name, err))
				}
			}
		}
	}
	return errors.Join(errs...)
}
