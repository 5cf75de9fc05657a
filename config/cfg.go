package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"acrf/common"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	FrontMatterConfig struct {
		Renderer common.RendererKind `yaml:"renderer"`
		// Command and Args are used by external renderer only, every argument
		// may refer to {{.HTML}} and {{.PDF}}.
		Command  string   `yaml:"command" validate:"required_if=Renderer 1"`
		Args     []string `yaml:"args"`
		Template string   `yaml:"template,omitempty" sanitize:"assure_file_access"`
		Title    string   `yaml:"title"`
	}

	BookmarksConfig struct {
		Embedder common.RendererKind `yaml:"embedder"`
		Tool     string              `yaml:"tool" validate:"required_if=Embedder 1"`
	}

	BuildConfig struct {
		VisitTitle    string            `yaml:"visit_title" validate:"required"`
		FormTitle     string            `yaml:"form_title" validate:"required"`
		Compact       bool              `yaml:"compact"`
		KeepWorkspace bool              `yaml:"keep_workspace"`
		FrontMatter   FrontMatterConfig `yaml:"front_matter"`
		Bookmarks     BookmarksConfig   `yaml:"bookmarks"`
	}

	StoreConfig struct {
		Path string `yaml:"path" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Build     BuildConfig    `yaml:"build"`
		Store     StoreConfig    `yaml:"store"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

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
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation. Values in the file are taken as is,
// only the template is expanded.
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
