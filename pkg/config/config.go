// Package config loads service configuration from struct tags.
//
// Supported tags:
//
//	env:"NAME"       environment variable to read
//	yaml:"name"      key in an optional YAML file
//	default:"value"  applied when the field is still zero after env and YAML
//	required:"true"  field must end up non-zero (ignored when a default is set)
//
// Nested structs are walked recursively. Supported field kinds are string,
// int/int64, float32/float64, bool, time.Duration and []string (comma separated).
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Validator is implemented by config structs that need checks beyond tags.
// It runs after env vars, YAML and defaults have been applied.
type Validator interface {
	Validate() error
}

// GetConfigFromEnvVars fills dest from environment variables and defaults.
//
//	var cfg MyConfig
//	err := GetConfigFromEnvVars(&cfg)
func GetConfigFromEnvVars[T any](dest *T) error {
	val := reflect.ValueOf(dest).Elem()

	fromEnv, err := applyEnv(val, val.Type())
	if err != nil {
		return err
	}

	if err := applyDefaultsAndRequired(val, val.Type(), fromEnv); err != nil {
		var zero T
		*dest = zero
		return err
	}

	return validate(dest)
}

// GetConfig reads a YAML file (with ${VAR} interpolation) and then overlays
// environment variables. An empty filepath means env vars only. With
// allowFileErrors a missing or broken file falls back to env vars only.
func GetConfig[T any](dest *T, filepath string, allowFileErrors bool) error {
	if filepath == "" {
		return GetConfigFromEnvVars(dest)
	}

	data, err := os.ReadFile(filepath) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if allowFileErrors {
			return GetConfigFromEnvVars(dest)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), dest); err != nil {
		if allowFileErrors {
			return GetConfigFromEnvVars(dest)
		}
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return GetConfigFromEnvVars(dest)
}

func validate[T any](dest *T) error {
	if v, ok := any(dest).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		return nil
	}
	if v, ok := any(*dest).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}
	return nil
}

// fieldKey identifies a field across nested structs without colliding on
// identically named fields of different types.
func fieldKey(owner reflect.Type, field reflect.StructField) string {
	return owner.Name() + "." + field.Name
}

func applyEnv(val reflect.Value, typ reflect.Type) (map[string]bool, error) {
	set := make(map[string]bool)

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		meta := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			nested, err := applyEnv(field, meta.Type)
			if err != nil {
				return nil, err
			}
			for k := range nested {
				set[k] = true
			}
			continue
		}

		name := meta.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := os.LookupEnv(name)
		if !ok || raw == "" {
			continue
		}

		if err := setValue(field, raw); err != nil {
			return nil, fmt.Errorf("env %s: %w", name, err)
		}
		set[fieldKey(typ, meta)] = true
	}

	return set, nil
}

func applyDefaultsAndRequired(val reflect.Value, typ reflect.Type, fromEnv map[string]bool) error {
	var result error

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		meta := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			if err := applyDefaultsAndRequired(field, meta.Type, fromEnv); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}

		def, hasDefault := meta.Tag.Lookup("default")
		required := isTrue(meta.Tag.Get("required")) && !hasDefault

		if field.IsZero() && required {
			result = multierror.Append(result, fmt.Errorf("required field env:%s / yaml:%s is missing",
				meta.Tag.Get("env"), meta.Tag.Get("yaml")))
			continue
		}

		if field.IsZero() && hasDefault && def != "" && !fromEnv[fieldKey(typ, meta)] {
			if err := setValue(field, def); err != nil {
				result = multierror.Append(result, fmt.Errorf("default for %s: %w", meta.Name, err))
			}
		}
	}

	return result
}

func setValue(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %q to duration: %w", raw, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int64, reflect.Int32:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to convert %q to int: %w", raw, err)
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("failed to convert %q to float: %w", raw, err)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %q to bool: %w", raw, err)
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(raw, ",")
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}

	return nil
}

func isTrue(tag string) bool {
	tag = strings.ToLower(tag)
	return tag == "true" || tag == "1"
}
