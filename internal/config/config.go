package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// BlackoutRule declares recurring dates on which no rider may be assigned,
// such as service holidays. The rrule is evaluated against event dates; an
// optional time window narrows it within the day.
type BlackoutRule struct {
	RRule     string `yaml:"rrule" validate:"required"`
	StartTime string `yaml:"startTime,omitempty"`
	EndTime   string `yaml:"endTime,omitempty"`
	Reason    string `yaml:"reason,omitempty"`
}

// Config represents the application configuration
type Config struct {
	DatabaseSheetID string         `yaml:"databaseSheetID" validate:"required"`
	PropertiesTab   string         `yaml:"propertiesTab,omitempty"`
	CredentialsFile string         `yaml:"credentialsFile" validate:"required"`
	TokenFile       string         `yaml:"tokenFile" validate:"required"`
	WriteDelayMS    int            `yaml:"writeDelayMS,omitempty" validate:"min=0"`
	BlackoutRules   []BlackoutRule `yaml:"blackoutRules,omitempty" validate:"dive"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from dispatch_config.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load() (*Config, error) {
	return LoadWithEnv("")
}

// LoadWithEnv loads dispatch_config.<env>.yaml (or dispatch_config.yaml
// when env is empty), searching the current directory then the home
// directory.
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.PropertiesTab == "" {
		cfg.PropertiesTab = "properties"
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct and checks rrule syntax
func Validate(cfg *Config) error {
	// Run struct validation
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Validate rrule syntax for each blackout rule
	for i, rule := range cfg.BlackoutRules {
		if _, err := rrule.StrToRRule(rule.RRule); err != nil {
			return fmt.Errorf("invalid rrule in blackoutRules[%d]: %w", i, err)
		}
	}

	return nil
}

// findConfigFile searches for the config file in current directory and home directory
func findConfigFile(env string) (string, error) {
	configFileName := "dispatch_config.yaml"
	if env != "" {
		configFileName = fmt.Sprintf("dispatch_config.%s.yaml", env)
	}

	// Check current directory
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file %s not found in current directory or home directory", configFileName)
}
