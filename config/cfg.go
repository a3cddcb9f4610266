package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"stylec/metrics"
	"stylec/storage"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	EngineConfig struct {
		Strict bool `yaml:"strict"`
		// Trace enables style tracer, trace is stored in debug report.
		Trace bool `yaml:"trace"`
	}

	SizeConfig struct {
		Width  float64 `yaml:"width" validate:"gte=0"`
		Height float64 `yaml:"height" validate:"gte=0"`
	}

	MetricsConfig struct {
		Platform  string     `yaml:"platform" validate:"oneof=android ios"`
		Notched   bool       `yaml:"notched"`
		StatusBar float64    `yaml:"status_bar" validate:"gte=0"`
		Window    SizeConfig `yaml:"window"`
		Screen    SizeConfig `yaml:"screen"`
	}

	StorageConfig struct {
		Path   string        `yaml:"path" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required"`
		Size   int           `yaml:"size" validate:"min=1"`
		Expiry time.Duration `yaml:"expiry" validate:"gt=0"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Engine    EngineConfig   `yaml:"engine"`
		Metrics   MetricsConfig  `yaml:"metrics"`
		Storage   StorageConfig  `yaml:"storage"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

// DeviceConfig converts metrics section to provider configuration.
func (conf *MetricsConfig) DeviceConfig() (metrics.DeviceConfig, error) {
	p, err := metrics.ParsePlatform(conf.Platform)
	if err != nil {
		return metrics.DeviceConfig{}, err
	}
	return metrics.DeviceConfig{
		Platform:  p,
		Notched:   conf.Notched,
		StatusBar: conf.StatusBar,
		Window:    metrics.Size{Width: conf.Window.Width, Height: conf.Window.Height},
		Screen:    metrics.Size{Width: conf.Screen.Width, Height: conf.Screen.Height},
	}, nil
}

// StoreConfig converts storage section.
func (conf *StorageConfig) StoreConfig() storage.Config {
	return storage.Config{Path: conf.Path, Size: conf.Size, Expiry: conf.Expiry}
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to
// provide sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
