// Package config loads and validates the seasonality engine configuration.
// The returned Config is treated as immutable and passed explicitly to every stage.
package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"seasonality-lab/internal/domain"
)

// ErrInvalidConfig is returned for any configuration that must abort the run.
var ErrInvalidConfig = errors.New("invalid config")

// DateLayout is the on-disk layout of configured dates.
const DateLayout = "2006-01-02"

var validate = validator.New()

// Config is the engine configuration.
type Config struct {
	ReferenceSeason   string         `yaml:"reference_season" validate:"required"`
	Seasons           []SeasonWindow `yaml:"seasons" validate:"len=4,dive"`
	CutoffMonth       int            `yaml:"reference_year_cutoff_month" validate:"min=1,max=12"`
	Pandemic          PandemicWindow `yaml:"pandemic"`
	HolidayBlackout   BlackoutWindow `yaml:"holiday_blackout"`
	DisclosureBase    int            `yaml:"disclosure_base" validate:"min=1"`
	SignificanceLevel float64        `yaml:"significance_level" validate:"gt=0,lt=1"`
	Workers           int            `yaml:"workers" validate:"min=1,max=64"`
	Trend             TrendConfig    `yaml:"trend"`
}

// SeasonWindow is a named pair of calendar months.
type SeasonWindow struct {
	Name   string `yaml:"name" validate:"required,ne=none"`
	Months []int  `yaml:"months" validate:"len=2,dive,min=1,max=12"`
}

// PandemicWindow bounds the "during" period, inclusive on both ends.
type PandemicWindow struct {
	Start Date `yaml:"start"`
	End   Date `yaml:"end"`
}

// BlackoutWindow is a month/day range excluded in every year.
// A window whose start is after its end wraps over the new year.
type BlackoutWindow struct {
	Start MonthDay `yaml:"start"`
	End   MonthDay `yaml:"end"`
}

// TrendConfig controls the trend fitter.
type TrendConfig struct {
	PerSite bool `yaml:"per_site"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ReferenceSeason: "Jun-Jul",
		Seasons: []SeasonWindow{
			{Name: "Jun-Jul", Months: []int{6, 7}},
			{Name: "Sep-Oct", Months: []int{9, 10}},
			{Name: "Nov-Dec", Months: []int{11, 12}},
			{Name: "Jan-Feb", Months: []int{1, 2}},
		},
		CutoffMonth: 5,
		Pandemic: PandemicWindow{
			Start: NewDate(2020, time.March, 23),
			End:   NewDate(2021, time.July, 19),
		},
		HolidayBlackout: BlackoutWindow{
			Start: MonthDay{Month: 12, Day: 19},
			End:   MonthDay{Month: 12, Day: 26},
		},
		DisclosureBase:    6,
		SignificanceLevel: 0.05,
		Workers:           4,
	}
}

// Load reads a YAML file over the defaults and validates the result.
// An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML bytes over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		// An empty document leaves the defaults in place.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// Validate checks field constraints and cross-field rules.
// Every failure wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	seen := make(map[int]string, 12)
	names := make(map[string]struct{}, len(c.Seasons))
	for _, s := range c.Seasons {
		if _, dup := names[s.Name]; dup {
			return fmt.Errorf("%w: duplicate season %q", ErrInvalidConfig, s.Name)
		}
		names[s.Name] = struct{}{}
		for _, m := range s.Months {
			if other, ok := seen[m]; ok {
				return fmt.Errorf("%w: month %d in both %q and %q", ErrInvalidConfig, m, other, s.Name)
			}
			seen[m] = s.Name
		}
	}
	if _, ok := names[c.ReferenceSeason]; !ok {
		return fmt.Errorf("%w: reference season %q is not a configured season", ErrInvalidConfig, c.ReferenceSeason)
	}

	if c.Pandemic.Start.IsZero() || c.Pandemic.End.IsZero() {
		return fmt.Errorf("%w: pandemic start and end are required", ErrInvalidConfig)
	}
	if c.Pandemic.End.Before(c.Pandemic.Start.Time) {
		return fmt.Errorf("%w: pandemic end %s before start %s", ErrInvalidConfig, c.Pandemic.End, c.Pandemic.Start)
	}

	if err := c.HolidayBlackout.Start.validate(); err != nil {
		return fmt.Errorf("%w: holiday_blackout.start: %v", ErrInvalidConfig, err)
	}
	if err := c.HolidayBlackout.End.validate(); err != nil {
		return fmt.Errorf("%w: holiday_blackout.end: %v", ErrInvalidConfig, err)
	}

	return nil
}

// Hash returns a stable sha256 of the effective configuration.
func (c *Config) Hash() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ReferenceSeasonLabel returns the reference season as a domain label.
func (c *Config) ReferenceSeasonLabel() domain.Season {
	return domain.Season(c.ReferenceSeason)
}

// SeasonLabels returns the configured season labels in configuration order.
func (c *Config) SeasonLabels() []domain.Season {
	out := make([]domain.Season, len(c.Seasons))
	for i, s := range c.Seasons {
		out[i] = domain.Season(s.Name)
	}
	return out
}
