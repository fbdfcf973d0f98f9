package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Base is the typed view of config/base.yaml.
type Base struct {
	// Database holds the Postgres connection settings, password excluded.
	Database DatabaseConfig `yaml:"database" validate:"required"`

	// Databricks holds the platform resource identifiers.
	Databricks DatabricksConfig `yaml:"databricks"`

	// Upload holds the document upload policy.
	Upload UploadConfig `yaml:"upload"`

	// Secrets holds references into the platform secret store, never values.
	Secrets SecretsConfig `yaml:"secrets"`
}

// DatabaseConfig describes the application database connection.
type DatabaseConfig struct {
	Host   string `yaml:"host" validate:"required,hostname|fqdn"`
	Port   int    `yaml:"port" validate:"required,min=1,max=65535"`
	Name   string `yaml:"name" validate:"required"`
	User   string `yaml:"user" validate:"required"`
	Schema string `yaml:"schema" validate:"required"`
}

// DatabricksConfig holds the platform-issued resource identifiers.
type DatabricksConfig struct {
	JobID       int64  `yaml:"job_id"`
	OutputTable string `yaml:"output_table"`
}

// UploadConfig is the document upload policy.
type UploadConfig struct {
	BasePath          string   `yaml:"base_path" validate:"omitempty,startswith=/Volumes/"`
	MaxSizeMB         int      `yaml:"max_size_mb" validate:"omitempty,min=1"`
	AllowedExtensions []string `yaml:"allowed_extensions" validate:"omitempty,dive,startswith=."`
}

// SecretsConfig holds secret references (scope+key pointers).
type SecretsConfig struct {
	DatabasePassword SecretRef `yaml:"database_password"`
}

// SecretRef points at a secret in the platform secret store.
type SecretRef struct {
	Scope string `yaml:"scope"`
	Key   string `yaml:"key"`
}

// IsSet reports whether the reference names both a scope and a key.
func (r SecretRef) IsSet() bool {
	return r.Scope != "" && r.Key != ""
}

var validate = validator.New()

// Parse converts a loaded document into the typed Base view and validates
// the sections that are present.
func Parse(doc Document) (*Base, error) {
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to re-serialize document: %w", err)
	}

	var base Base
	if err := yaml.Unmarshal(raw, &base); err != nil {
		return nil, fmt.Errorf("failed to parse base config: %w", err)
	}

	if err := validate.Struct(&base); err != nil {
		return nil, fmt.Errorf("base config validation failed: %w", err)
	}

	return &base, nil
}
