package marketdata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig holds optional defaults loaded from a YAML file. Every field
// is overridable by a CLI flag; pointer fields distinguish "absent" from a
// zero value.
type FileConfig struct {
	Provider          string `yaml:"provider"`
	Format            string `yaml:"format"`
	Granularity       string `yaml:"granularity"`
	OutputDir         string `yaml:"output_dir"`
	RateLimitWaitSecs *int   `yaml:"rate_limit_wait_secs"`
	MaxRetries        *int   `yaml:"max_retries"`
	TimeoutSecs       *int   `yaml:"timeout_secs"`
	MaxDecimals       *int   `yaml:"max_decimals"`
	NoHeader          *bool  `yaml:"no_header"`
	SplitByDay        *bool  `yaml:"split_by_day"`
}

// LoadFileConfig reads a YAML defaults file.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &config, nil
}
