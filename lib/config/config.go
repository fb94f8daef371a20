// Package config loads application settings from an HCL (or YAML) file
// with environment variable overrides.
//
//	addr              = ":8080"
//	secret_key        = "change-me"
//	production        = true
//	log_level         = "info"
//	log_format        = "json"
//	encrypt_form_data = false
//	metrics_path      = "/metrics"
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the environment variables that override file values.
const EnvPrefix = "TAPESTRY_"

// Config holds application settings.
type Config struct {
	Addr            string `hcl:"addr,optional" yaml:"addr" validate:"required"`
	SecretKey       string `hcl:"secret_key,optional" yaml:"secret_key" validate:"required"`
	Production      bool   `hcl:"production,optional" yaml:"production"`
	LogLevel        string `hcl:"log_level,optional" yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat       string `hcl:"log_format,optional" yaml:"log_format" validate:"oneof=json console"`
	EncryptFormData bool   `hcl:"encrypt_form_data,optional" yaml:"encrypt_form_data"`
	MetricsPath     string `hcl:"metrics_path,optional" yaml:"metrics_path" validate:"omitempty,startswith=/"`
}

// Default returns settings suitable for local development.
func Default() Config {
	return Config{
		Addr:      ":8080",
		SecretKey: "tapestry-development-key",
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Load reads the file at path over the defaults, then applies environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		src, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := decode(src, path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes src over the defaults without consulting the environment.
// The filename's extension selects the format.
func Parse(src []byte, filename string) (Config, error) {
	cfg := Default()
	if err := decode(src, filename, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(src []byte, filename string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(src, cfg); err != nil {
			return fmt.Errorf("config: failed to decode %s: %w", filename, err)
		}
		return nil
	default:
		file, diags := hclparse.NewParser().ParseHCL(src, filename)
		if diags.HasErrors() {
			return fmt.Errorf("config: failed to parse %s: %s", filename, diags.Error())
		}
		if diags := gohcl.DecodeBody(file.Body, nil, cfg); diags.HasErrors() {
			return fmt.Errorf("config: failed to decode %s: %s", filename, diags.Error())
		}
		return nil
	}
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}

	str("ADDR", &cfg.Addr)
	str("SECRET_KEY", &cfg.SecretKey)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("METRICS_PATH", &cfg.MetricsPath)
	return errors.Join(
		boolean("PRODUCTION", &cfg.Production),
		boolean("ENCRYPT_FORM_DATA", &cfg.EncryptFormData),
	)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the settings.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
			}
			return fmt.Errorf("config: invalid settings: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// NewLogger builds the application logger described by the settings.
func (c Config) NewLogger() (*zap.Logger, error) {
	var zc zap.Config
	if c.Production {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	zc.Level = level
	zc.Encoding = c.LogFormat
	return zc.Build()
}
