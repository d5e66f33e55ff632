package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	validator "github.com/go-playground/validator/v10"
	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	RenderConfig struct {
		Emoji                 bool     `yaml:"emoji"`
		Standalone            bool     `yaml:"standalone"`
		StylesheetPath        string   `yaml:"stylesheet_path" validate:"omitempty,filepath"`
		OutputNameTemplate    string   `yaml:"output_name_template"`
		FileNameTransliterate bool     `yaml:"file_name_transliterate"`
		Extensions            []string `yaml:"extensions" validate:"min=1,dive,required,startswith=."`
		Workers               int      `yaml:"workers" validate:"min=1,max=64"`
		IncludeDepth          int      `yaml:"include_depth" validate:"min=0,max=5"`
		Sanitize              bool     `yaml:"sanitize"`
	}

	GenerationConfig struct {
		Backend    GenerationBackend `yaml:"backend" validate:"gte=0"`
		Endpoint   string            `yaml:"endpoint" validate:"omitempty,url"`
		APIKey     SecretString      `yaml:"api_key"`
		TextModel  string            `yaml:"text_model"`
		ImageModel string            `yaml:"image_model"`
		ImageSize  string            `yaml:"image_size"`
		VoiceModel string            `yaml:"voice_model"`
		Voice      string            `yaml:"voice"`
		Timeout    time.Duration     `yaml:"timeout" validate:"gte=0"`
		Retries    int               `yaml:"retries" validate:"min=0,max=10"`
	}

	LibraryConfig struct {
		Path string `yaml:"path" validate:"omitempty,filepath"`
	}

	Config struct {
		Version    int              `yaml:"version" validate:"eq=1"`
		Render     RenderConfig     `yaml:"render"`
		Generation GenerationConfig `yaml:"generation"`
		Library    LibraryConfig    `yaml:"library"`
		Logging    LoggingConfig    `yaml:"logging"`
		Reporting  ReporterConfig   `yaml:"reporting"`
	}
)

// NOTE: must match yaml field name above.
const OutputNameTemplateFieldName TemplateFieldName = "output_name_template"

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// Only fields we defined are allowed, so yaml.Unmarshal cannot be used
	// directly
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg, gencfg.WithAdditionalChecks(generationChecks)); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// generationChecks verifies that selected generation backend has everything it
// needs to operate.
func generationChecks(sl validator.StructLevel) {
	cfg, ok := sl.Current().Interface().(Config)
	if !ok {
		return
	}
	gen := cfg.Generation
	switch gen.Backend {
	case GenerationBackendHttp:
		if len(gen.Endpoint) == 0 {
			sl.ReportError(gen.Endpoint, "Generation.Endpoint", "endpoint", "required_with_backend", gen.Backend.String())
		}
	case GenerationBackendOpenai, GenerationBackendGemini:
		if len(gen.APIKey) == 0 {
			sl.ReportError(gen.APIKey, "Generation.APIKey", "api_key", "required_with_backend", gen.Backend.String())
		}
	}
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
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
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

// Dump returns active configuration as YAML, secrets are masked.
func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
