package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for sentinel-gate.yaml/.yml
// in standard locations. The search requires an explicit YAML extension to
// avoid matching the binary itself, which Viper's built-in SetConfigName
// would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("sentinel-gate")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: SENTINEL_GATE_MAX_REFERENCE_CHAIN_DEPTH
	viper.SetEnvPrefix("SENTINEL_GATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindEnvKeys()
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".sentinel-gate"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "sentinel-gate"))
		}
	} else {
		paths = append(paths, "/etc/sentinel-gate")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for
// sentinel-gate.yaml or .yml. Returns the full path of the first match, or
// empty string if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "sentinel-gate"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

func bindEnvKeys() {
	_ = viper.BindEnv("max_reference_chain_depth")
	_ = viper.BindEnv("decision_cache_size")
	_ = viper.BindEnv("xpath_enabled")
	_ = viper.BindEnv("default_combining_algorithm")
	_ = viper.BindEnv("log_level")
	_ = viper.BindEnv("metrics_addr")
	_ = viper.BindEnv("dev_mode")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and returns the validated PDPConfig.
func LoadConfig() (*PDPConfig, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg PDPConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was
// loaded, or empty if none was found (env vars/defaults only).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
