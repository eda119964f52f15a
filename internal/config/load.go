package config

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/backtestlab/simcore/internal/simerr"
)

var validate = validator.New()

// LoadJSON decodes a StrategyConfig from JSON at path, rejecting unknown
// top-level keys, and validates it.
func LoadJSON(path string) (*StrategyConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, simerr.Newf(simerr.KindConfigurationInvalid, "reading config %s: %v", path, err).Wrap(err)
	}
	var cfg StrategyConfig
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, simerr.Newf(simerr.KindConfigurationInvalid, "parsing config %s: %v", path, err).Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadYAML decodes a StrategyConfig from YAML at path and validates it.
// yaml.v3's decoder does not support a JSON-style DisallowUnknownFields
// flag on a plain Unmarshal call; KnownFields is set on the decoder
// instead to get the same unknown-key rejection spec.md §9 requires.
func LoadYAML(path string) (*StrategyConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, simerr.Newf(simerr.KindConfigurationInvalid, "reading config %s: %v", path, err).Wrap(err)
	}
	var cfg StrategyConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, simerr.Newf(simerr.KindConfigurationInvalid, "parsing config %s: %v", path, err).Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnvOverrides applies a .env file (if present) to the process
// environment, for host-side secrets like PriceSource API keys that never
// belong in a checked-in StrategyConfig.
func LoadEnvOverrides(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// Validate runs struct-tag validation and the cross-field checks the
// tags cannot express: period ordering, non-empty universe, non-negative
// cash, and custom-weights coverage of the universe.
func (c *StrategyConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return simerr.Newf(simerr.KindConfigurationInvalid, "invalid config: %v", err).Wrap(err)
	}
	if !c.Period.End.After(c.Period.Start) {
		return simerr.New(simerr.KindConfigurationInvalid, "period.end must be after period.start")
	}
	if len(c.Universe.Symbols) == 0 {
		return simerr.New(simerr.KindConfigurationInvalid, "universe.symbols must not be empty")
	}
	if c.InitialCash.IsNegative() {
		return simerr.New(simerr.KindConfigurationInvalid, "initial_cash must not be negative")
	}
	if c.PositionSizing.Method == "CUSTOM_WEIGHTS" {
		if len(c.PositionSizing.CustomWeights) == 0 {
			return simerr.New(simerr.KindConfigurationInvalid, "position_sizing.custom_weights is required for CUSTOM_WEIGHTS")
		}
		for _, sym := range c.Universe.Symbols {
			if _, ok := c.PositionSizing.CustomWeights[sym]; !ok {
				return simerr.Newf(simerr.KindConfigurationInvalid, "position_sizing.custom_weights missing entry for universe symbol %q", sym).WithSymbol(sym)
			}
		}
	}
	return nil
}
