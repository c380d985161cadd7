package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the service configuration, read from the environment
// (optionally seeded from a .env file).
type Config struct {
	Port     string `mapstructure:"port"`
	GRPCPort string `mapstructure:"grpc_port"`
	LogLevel string `mapstructure:"log_level"`

	ModelPath       string `mapstructure:"model_path"`
	ONNXLibraryPath string `mapstructure:"onnx_library_path"`
	ModelInputName  string `mapstructure:"model_input_name"`
	ModelOutputName string `mapstructure:"model_output_name"`
	ImageSize       int    `mapstructure:"image_size"`
	TensorLayout    string `mapstructure:"tensor_layout"`
	NumClasses      int    `mapstructure:"num_classes"`

	TempDir          string        `mapstructure:"temp_dir"`
	MaxUploadBytes   int64         `mapstructure:"max_upload_bytes"`
	InferenceTimeout time.Duration `mapstructure:"inference_timeout"`
	StaticDir        string        `mapstructure:"static_dir"`

	// DatabaseURL enables prediction history when set.
	DatabaseURL string `mapstructure:"database_url"`
}

var defaults = map[string]interface{}{
	"port":              "8088",
	"grpc_port":         "8008",
	"log_level":         "info",
	"model_path":        "models/plant_disease_model.onnx",
	"onnx_library_path": "",
	"model_input_name":  "input",
	"model_output_name": "output",
	"image_size":        224,
	"tensor_layout":     "nhwc",
	"num_classes":       38,
	"temp_dir":          "temp",
	"max_upload_bytes":  4 * 1024 * 1024,
	"inference_timeout": "30s",
	"static_dir":        "./static",
	"database_url":      "",
}

// Load reads envFile (if it exists) into the process environment and
// builds the configuration from defaults overridden by environment variables.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s failed: %w", envFile, err)
		}
	}

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s failed: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	return &cfg, nil
}

// LoadDefault loads ".env" from the working directory.
func LoadDefault() (*Config, error) {
	return Load(".env")
}

// Validate checks values that would otherwise fail later at request time.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.ModelPath == "" {
		return fmt.Errorf("model_path is required")
	}
	if c.ImageSize <= 0 {
		return fmt.Errorf("image_size must be positive, got %d", c.ImageSize)
	}
	if c.TensorLayout != "nhwc" && c.TensorLayout != "nchw" {
		return fmt.Errorf("tensor_layout must be nhwc or nchw, got %q", c.TensorLayout)
	}
	if c.NumClasses <= 0 {
		return fmt.Errorf("num_classes must be positive, got %d", c.NumClasses)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.InferenceTimeout < 0 {
		return fmt.Errorf("inference_timeout must not be negative")
	}
	if c.TempDir == "" {
		return fmt.Errorf("temp_dir is required")
	}
	return nil
}

// InputShape is the model input tensor shape for a single image.
func (c *Config) InputShape() []int64 {
	s := int64(c.ImageSize)
	if c.TensorLayout == "nchw" {
		return []int64{1, 3, s, s}
	}
	return []int64{1, s, s, 3}
}

// OutputShape is the model output tensor shape.
func (c *Config) OutputShape() []int64 {
	return []int64{1, int64(c.NumClasses)}
}

// BodyLimit is the HTTP request body cap. It leaves room above
// MaxUploadBytes so oversized uploads reach the handler and get a
// descriptive error instead of a bare 413.
func (c *Config) BodyLimit() int {
	return int(c.MaxUploadBytes)*4 + 1<<20
}
