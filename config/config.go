package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Service struct {
	Name      string `yaml:"name" mapstructure:"name"`
	Version   string `yaml:"version" mapstructure:"version"`
	LogLvl    string `yaml:"log_level" mapstructure:"log_level"`
	LogFormat string `yaml:"log_format" mapstructure:"log_format"` // text | json
}

type Server struct {
	Addr            string   `yaml:"addr" mapstructure:"addr"`
	ReadTimeout     int      `yaml:"read_timeout" mapstructure:"read_timeout"`   // seconds
	WriteTimeout    int      `yaml:"write_timeout" mapstructure:"write_timeout"` // seconds
	MaxUploadMB     int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min" mapstructure:"rate_limit_per_min"` // 0 disables
}

type Audio struct {
	SampleRate int `yaml:"sample_rate" mapstructure:"sample_rate"`
	NumMFCC    int `yaml:"n_mfcc" mapstructure:"n_mfcc"`
	FFTSize    int `yaml:"n_fft" mapstructure:"n_fft"`
	HopLength  int `yaml:"hop_length" mapstructure:"hop_length"`
	NumMels    int `yaml:"n_mels" mapstructure:"n_mels"`
}

type TextModel struct {
	ModelPath     string   `yaml:"model_path" mapstructure:"model_path"`
	TokenizerPath string   `yaml:"tokenizer_path" mapstructure:"tokenizer_path"`
	MaxTokens     int      `yaml:"max_tokens" mapstructure:"max_tokens"`
	InputNames    []string `yaml:"input_names" mapstructure:"input_names"`
	OutputName    string   `yaml:"output_name" mapstructure:"output_name"`
}

type AudioModel struct {
	ModelPath  string `yaml:"model_path" mapstructure:"model_path"`
	InputName  string `yaml:"input_name" mapstructure:"input_name"`
	OutputName string `yaml:"output_name" mapstructure:"output_name"`
}

type FusionModel struct {
	TextWeight  float64 `yaml:"text_weight" mapstructure:"text_weight"`
	AudioWeight float64 `yaml:"audio_weight" mapstructure:"audio_weight"`
}

type Models struct {
	// ORTLibrary is the path of the ONNX Runtime shared library. Empty uses
	// the platform default name.
	ORTLibrary string      `yaml:"onnxruntime_lib" mapstructure:"onnxruntime_lib"`
	Text       TextModel   `yaml:"text" mapstructure:"text"`
	Audio      AudioModel  `yaml:"audio" mapstructure:"audio"`
	Fusion     FusionModel `yaml:"fusion" mapstructure:"fusion"`
}

type Workers struct {
	Size int `yaml:"size" mapstructure:"size"`
}

type History struct {
	DefaultLimit int `yaml:"default_limit" mapstructure:"default_limit"`
}

type Root struct {
	Service Service `yaml:"service" mapstructure:"service"`
	Server  Server  `yaml:"server" mapstructure:"server"`
	Audio   Audio   `yaml:"audio" mapstructure:"audio"`
	Models  Models  `yaml:"models" mapstructure:"models"`
	Workers Workers `yaml:"workers" mapstructure:"workers"`
	History History `yaml:"history" mapstructure:"history"`
	Paths   struct {
		Data    string `yaml:"data" mapstructure:"data"`
		Models  string `yaml:"models" mapstructure:"models"`
		Outputs string `yaml:"outputs" mapstructure:"outputs"`
	} `yaml:"paths" mapstructure:"paths"`
}

// EnvPrefix prefixes every environment override, e.g. MOOD_SERVER_ADDR.
const EnvPrefix = "MOOD"

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "mood-companion")
	v.SetDefault("service.version", "dev")
	v.SetDefault("service.log_level", "info")
	v.SetDefault("service.log_format", "text")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 120)
	v.SetDefault("server.max_upload_mb", 25)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit_per_min", 0)

	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.n_mfcc", 40)
	v.SetDefault("audio.n_fft", 2048)
	v.SetDefault("audio.hop_length", 512)
	v.SetDefault("audio.n_mels", 128)

	v.SetDefault("models.onnxruntime_lib", "")
	v.SetDefault("models.text.model_path", "text/model.onnx")
	v.SetDefault("models.text.tokenizer_path", "text/tokenizer.json")
	v.SetDefault("models.text.max_tokens", 512)
	v.SetDefault("models.text.input_names", []string{"input_ids", "attention_mask"})
	v.SetDefault("models.text.output_name", "logits")
	v.SetDefault("models.audio.model_path", "audio/model.onnx")
	v.SetDefault("models.audio.input_name", "input")
	v.SetDefault("models.audio.output_name", "logits")
	v.SetDefault("models.fusion.text_weight", 0.5)
	v.SetDefault("models.fusion.audio_weight", 0.5)

	v.SetDefault("workers.size", 4)
	v.SetDefault("history.default_limit", 100)

	v.SetDefault("paths.data", "data/mood_history")
	v.SetDefault("paths.models", "models")
	v.SetDefault("paths.outputs", "outputs")
}

// Load reads the configuration. When path is empty the file is looked up in
// config/<CONFIG_ENV>/config.yaml and then src/shared/config.yaml; a missing
// file is not an error and leaves the defaults in place. Environment
// variables with the MOOD_ prefix override file values.
func Load(path string) (*Root, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		guess := []string{
			filepath.Join("config", env, "config.yaml"),
			filepath.Join("src", "shared", "config.yaml"),
		}
		for _, p := range guess {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	cfg.resolvePaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolvePaths makes model file paths relative to paths.models.
func (c *Root) resolvePaths() {
	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(c.Paths.Models, p)
	}
	c.Models.Text.ModelPath = join(c.Models.Text.ModelPath)
	c.Models.Text.TokenizerPath = join(c.Models.Text.TokenizerPath)
	c.Models.Audio.ModelPath = join(c.Models.Audio.ModelPath)
}

func (c *Root) Validate() error {
	var errs []error
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Audio.NumMFCC <= 0 || c.Audio.NumMFCC > c.Audio.NumMels {
		errs = append(errs, fmt.Errorf("audio.n_mfcc must be in [1, n_mels], got %d", c.Audio.NumMFCC))
	}
	if c.Audio.FFTSize <= 0 || c.Audio.HopLength <= 0 {
		errs = append(errs, errors.New("audio.n_fft and audio.hop_length must be positive"))
	}
	if c.Workers.Size <= 0 {
		errs = append(errs, fmt.Errorf("workers.size must be positive, got %d", c.Workers.Size))
	}
	if c.Models.Fusion.TextWeight < 0 || c.Models.Fusion.AudioWeight < 0 {
		errs = append(errs, errors.New("models.fusion weights must not be negative"))
	}
	if c.History.DefaultLimit <= 0 {
		errs = append(errs, fmt.Errorf("history.default_limit must be positive, got %d", c.History.DefaultLimit))
	}
	return errors.Join(errs...)
}

// YAML renders the effective configuration.
func (c *Root) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
