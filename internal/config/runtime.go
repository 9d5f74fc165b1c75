package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/softtagz-sys/medikits-flowchart/internal/layout"
)

// Runtime holds the knobs shared by the CLI and the service. Values come from
// defaults, then the YAML file named by FLOWCHART_CONFIG, then env vars.
type Runtime struct {
	CacheMaxItems int            `yaml:"cacheMaxItems"`
	ObsBuffer     int            `yaml:"observerBuffer"`
	LogLevel      string         `yaml:"logLevel"`
	LogFormat     string         `yaml:"logFormat"`
	ExpertMode    bool           `yaml:"expertMode"`
	CatalogPath   string         `yaml:"catalogPath"`
	Layout        layout.Options `yaml:"layout"`
}

func Defaults() Runtime {
	return Runtime{
		CacheMaxItems: 256,
		ObsBuffer:     1024,
		LogLevel:      "info",
		LogFormat:     "text",
		Layout:        layout.DefaultOptions(),
	}
}

func Load() (Runtime, error) {
	cfg := Defaults()
	if path := getenv("FLOWCHART_CONFIG", ""); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("config file: %w", err)
		}
		defer f.Close()
		if cfg, err = Decode(f); err != nil {
			return cfg, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	cfg.CacheMaxItems = getenvInt("FLOWCHART_CACHE_MAX_ITEMS", cfg.CacheMaxItems, 1)
	cfg.ObsBuffer = getenvInt("FLOWCHART_OBS_BUFFER", cfg.ObsBuffer, 1)
	cfg.LogLevel = getenv("FLOWCHART_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenv("FLOWCHART_LOG_FORMAT", cfg.LogFormat)
	cfg.ExpertMode = getenvBool("FLOWCHART_EXPERT_MODE", cfg.ExpertMode)
	cfg.CatalogPath = getenv("FLOWCHART_CATALOG", cfg.CatalogPath)
	return cfg, nil
}

// Decode reads a YAML config over Defaults. Unknown keys are rejected and
// out-of-range numbers fall back to their default.
func Decode(r io.Reader) (Runtime, error) {
	cfg := Defaults()
	data, err := io.ReadAll(r)
	if err != nil {
		return cfg, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Defaults(), err
	}

	def := Defaults()
	if cfg.CacheMaxItems < 1 {
		cfg.CacheMaxItems = def.CacheMaxItems
	}
	if cfg.ObsBuffer < 1 {
		cfg.ObsBuffer = def.ObsBuffer
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback, min int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min {
		return fallback
	}
	return v
}

func getenvBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
