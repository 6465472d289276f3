// Beamwatch - radiation-beam DUT fleet supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/beamwatch

package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultServerConfigPath is used by the CLI when -c/--config is omitted.
const DefaultServerConfigPath = "./server_parameters.yaml"

// EnvPrefix namespaces the environment variable override layer so unrelated
// process environment variables are never accidentally picked up.
const EnvPrefix = "BEAMWATCH_"

// envTransform turns BEAMWATCH_SERVER_LOG_FILE into server_log_file, matching
// the koanf tag names used on ServerConfig/DutConfig.
func envTransform(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ToLower(s)
}

// secondsToDurationHookFunc lets a time.Duration field decode from a bare
// YAML/env integer or float, interpreted as seconds, in addition to koanf's
// default string form ("30s"). Scenario files tend to write durations as
// plain numbers (e.g. max_timeout_time: 2); without this hook that value
// decodes as 2ns, not 2s, and still passes Validate's > 0 check. A value that
// already is a time.Duration (the struct defaults layer) passes through as is.
func secondsToDurationHookFunc() mapstructure.DecodeHookFunc {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType || from == durationType {
			return data, nil
		}
		v := reflect.ValueOf(data)
		switch from.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return time.Duration(v.Int()) * time.Second, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return time.Duration(v.Uint()) * time.Second, nil
		case reflect.Float32, reflect.Float64:
			return time.Duration(v.Float() * float64(time.Second)), nil
		default:
			return data, nil
		}
	}
}

// unmarshal decodes k into out using koanf's default decoding plus
// secondsToDurationHookFunc, so every duration field on ServerConfig/DutConfig
// accepts both "30s" and a bare 30.
func unmarshal(k *koanf.Koanf, out any) error {
	return k.UnmarshalWithConf("", out, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           out,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				secondsToDurationHookFunc(),
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	})
}

// LoadServerConfig layers struct defaults, the YAML file at path, and
// BEAMWATCH_-prefixed environment overrides into a ServerConfig, in that
// order, then validates the result.
func LoadServerConfig(path string) (ServerConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultServerConfig(), "koanf"), nil); err != nil {
		return ServerConfig{}, fmt.Errorf("config: loading defaults: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return ServerConfig{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return ServerConfig{}, fmt.Errorf("config: reading environment overrides: %w", err)
	}

	var cfg ServerConfig
	if err := unmarshal(k, &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// LoadDutConfig layers struct defaults, the YAML file at path, and
// BEAMWATCH_-prefixed environment overrides into a DutConfig, then
// validates the result.
func LoadDutConfig(path string) (DutConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultDutConfig(), "koanf"), nil); err != nil {
		return DutConfig{}, fmt.Errorf("config: loading defaults: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return DutConfig{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return DutConfig{}, fmt.Errorf("config: reading environment overrides: %w", err)
	}

	var cfg DutConfig
	if err := unmarshal(k, &cfg); err != nil {
		return DutConfig{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return DutConfig{}, err
	}
	return cfg, nil
}
