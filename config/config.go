package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/outofforest/replica/blob"
	"github.com/outofforest/replica/consumer"
	"github.com/outofforest/replica/store"
)

// Compression names accepted in configuration.
const (
	CompressionSnappy = "snappy"
	CompressionNone   = "none"
)

var validate = func() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("pow2", func(fl validator.FieldLevel) bool {
		x := fl.Field().Uint()
		return x != 0 && x&(x-1) == 0
	}); err != nil {
		panic(err)
	}
	return v
}()

// Config is the configuration of the replica.
type Config struct {
	Store    store.Config   `yaml:"store"`
	Consumer ConsumerConfig `yaml:"consumer"`
	Blob     BlobConfig     `yaml:"blob"`
}

// ConsumerConfig stores configuration of the consumer.
type ConsumerConfig struct {
	RefreshInterval time.Duration `yaml:"refreshInterval" validate:"gt=0"`
}

// BlobConfig stores configuration of published blobs.
type BlobConfig struct {
	Compression string `yaml:"compression" validate:"oneof=snappy none"`
}

// Options returns blob encoding options.
func (c BlobConfig) Options() *blob.Options {
	if c.Compression == CompressionNone {
		return &blob.Options{Compression: blob.NoCompression}
	}
	return &blob.Options{Compression: blob.SnappyCompression}
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Store: store.DefaultConfig,
		Consumer: ConsumerConfig{
			RefreshInterval: consumer.DefaultRefreshInterval,
		},
		Blob: BlobConfig{
			Compression: CompressionSnappy,
		},
	}
}

// Load loads configuration from the yaml file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.WithStack(err)
	}
	return Parse(data)
}

// Parse parses yaml configuration. Missing fields take default values.
func Parse(data []byte) (Config, error) {
	config := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "decoding configuration failed")
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate validates the configuration.
func (c Config) Validate() error {
	return errors.Wrap(validate.Struct(c), "invalid configuration")
}
