package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/hours-engine/allocation"
	"github.com/warp/hours-engine/export"
	"github.com/warp/hours-engine/factory"
	"github.com/warp/hours-engine/roster"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the current and home directories.
const FileName = "hours_engine.yaml"

// ErrNotFound is returned by Load when no config file exists.
var ErrNotFound = errors.New("config file not found in current directory or home directory")

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Port           int      `yaml:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty" validate:"dive,required"`
}

// DatabaseConfig selects the run store
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite postgres memory"`
	DSN    string `yaml:"dsn" validate:"required_unless=Driver memory"`

	// Retention deletes runs older than this; 0 keeps them forever.
	Retention time.Duration `yaml:"retention,omitempty" validate:"gte=0"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Env string `yaml:"env" validate:"oneof=development production"`
	Dir string `yaml:"dir,omitempty"`
}

// EngineConfig holds the allocation policy
type EngineConfig struct {
	Networks       []string            `yaml:"networks" validate:"required,min=1,unique,dive,required"`
	ConsumeAll     bool                `yaml:"consumeAll"`
	FallbackWorker string              `yaml:"fallbackWorker" validate:"required"`
	MedicalWorker  string              `yaml:"medicalWorker" validate:"required"`
	OnCallRate     float64             `yaml:"onCallRate" validate:"gte=0"`
	RolesFile      string              `yaml:"rolesFile,omitempty"`
	Overrides      map[string][]string `yaml:"overrides,omitempty" validate:"dive,keys,required,endkeys,dive,required"`
	Aliases        map[string]string   `yaml:"aliases,omitempty" validate:"dive,keys,required,endkeys,required"`
}

// ExportGroup is a workbook sheet aggregating several networks
type ExportGroup struct {
	Name     string   `yaml:"name" validate:"required,max=31"`
	Networks []string `yaml:"networks" validate:"required,min=1,dive,required"`
}

// ExportConfig configures workbook export
type ExportConfig struct {
	Groups []ExportGroup `yaml:"groups,omitempty" validate:"dive"`
}

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Engine   EngineConfig   `yaml:"engine"`
	Export   ExportConfig   `yaml:"export"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Default returns the configuration used when no file sets a value:
// five networks, consume-all, on-call at 1.5 per hour, placeholder fallback
// and medical identities, sqlite storage.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "hours_engine.db"},
		Log:      LogConfig{Env: "development"},
		Engine: EngineConfig{
			Networks:   []string{"RETE1", "RETE2", "RETE3", "RETE4", "RETE5"},
			ConsumeAll:     true,
			FallbackWorker: "Riserva Reperibilita",
			MedicalWorker:  "Medico Convenzionato",
			OnCallRate:     1.5,
		},
		Export: ExportConfig{
			Groups: []ExportGroup{{Name: "CIG1", Networks: []string{"RETE1", "RETE2", "RETE3", "RETE4"}}},
		},
	}
}

// Load loads and validates the configuration from hours_engine.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load() (*Config, error) {
	configPath, err := findConfigFile()
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path.
// Keys absent from the file keep their Default values.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration struct and the referenced role table
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Engine.RolesFile != "" {
		if _, err := factory.NewRoleFactory().LoadFile(cfg.Engine.RolesFile); err != nil {
			return fmt.Errorf("invalid engine.rolesFile: %w", err)
		}
	}

	return nil
}

// EngineConfig builds the allocation policy. The role table comes from
// engine.rolesFile when set, the default table otherwise.
func (c *Config) EngineConfig() (allocation.EngineConfig, error) {
	roles := allocation.DefaultRoleTable()
	if c.Engine.RolesFile != "" {
		var err error
		roles, err = factory.NewRoleFactory().LoadFile(c.Engine.RolesFile)
		if err != nil {
			return allocation.EngineConfig{}, err
		}
	}

	return allocation.EngineConfig{
		Roles:          roles,
		Priority:       allocation.DefaultPriorityTable(),
		Overrides:      allocation.NewOverrides(c.Engine.Overrides),
		FallbackWorker: c.Engine.FallbackWorker,
		MedicalWorker:  c.Engine.MedicalWorker,
		OnCallRate:     decimal.NewFromFloat(c.Engine.OnCallRate),
	}, nil
}

// ExportGroups converts the configured workbook groups
func (c *Config) ExportGroups() []export.Group {
	groups := make([]export.Group, len(c.Export.Groups))
	for i, g := range c.Export.Groups {
		groups[i] = export.Group{Name: g.Name, Networks: g.Networks}
	}
	return groups
}

// Normalizer builds the roster normalizer from the alias table
func (c *Config) Normalizer() *roster.Normalizer {
	return roster.NewNormalizer(c.Engine.Aliases)
}

// findConfigFile searches for hours_engine.yaml in current directory and home directory
func findConfigFile() (string, error) {
	// Check current directory
	if _, err := os.Stat(FileName); err == nil {
		return FileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, FileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", ErrNotFound
}
