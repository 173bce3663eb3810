// Package config loads and saves the analyzer settings file: well
// masks, section layouts, per-section dose labels, and the default
// analysis policies. The schema uses pointer fields so a partial config
// is safe; omitted fields fall back to documented defaults through the
// Get* accessors.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cmam-data/plate.report/internal/analysis"
)

// Rect is a section rectangle in config form: [r1, c1, r2, c2],
// inclusive, 0-indexed.
type Rect [4]int

// Config represents the analyzer settings file. Masks are keyed by
// plate-assay key and stored as 8x12 grids of 0/1 flags, the historical
// on-disk form.
type Config struct {
	RecentFiles      []string             `json:"recent_files,omitempty"`
	DefaultDirectory *string              `json:"default_directory,omitempty"`
	Masks            map[string][][]int   `json:"masks,omitempty"`
	NegCtrlMasks     map[string][][]int   `json:"neg_ctrl_masks,omitempty"`
	Sections         []Rect               `json:"sections,omitempty"`
	SectionDoses     map[string][]float64 `json:"section_doses,omitempty"`
	SectionUnits     *string              `json:"section_units,omitempty"`

	// Default analysis policies.
	UsePercentage    *bool   `json:"use_percentage,omitempty"`
	SubtractNegCtrl  *bool   `json:"subtract_neg_ctrl,omitempty"`
	ClampNegatives   *bool   `json:"clamp_negatives,omitempty"`
	ReferenceSection *string `json:"reference_section,omitempty"`
	DebugLog         *bool   `json:"debug_log,omitempty"`
}

const maxRecentFiles = 5

// Empty returns a Config with all fields unset; accessors supply the
// defaults.
func Empty() *Config {
	return &Config{}
}

// Load reads a config file. The file must have a .json extension and be
// under 1MB; fields omitted from the JSON keep their defaults, so
// partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes the config as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that every stored mask and section parses into the
// engine's types, so a bad file is rejected at load time instead of
// mid-run.
func (c *Config) Validate() error {
	for key, flags := range c.Masks {
		if _, err := analysis.NewMaskFromInts(flags); err != nil {
			return fmt.Errorf("mask for %s: %w", key, err)
		}
	}
	for key, flags := range c.NegCtrlMasks {
		if _, err := analysis.NewMaskFromInts(flags); err != nil {
			return fmt.Errorf("control mask for %s: %w", key, err)
		}
	}
	if len(c.Sections) > 0 {
		if err := c.SectionSet().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetUsePercentage returns whether the percent-of-baseline series is
// produced. Default true.
func (c *Config) GetUsePercentage() bool {
	if c.UsePercentage != nil {
		return *c.UsePercentage
	}
	return true
}

// GetSubtractNegCtrl returns whether negative controls are subtracted.
// Default true.
func (c *Config) GetSubtractNegCtrl() bool {
	if c.SubtractNegCtrl != nil {
		return *c.SubtractNegCtrl
	}
	return true
}

// GetClampNegatives returns whether post-subtraction negatives clamp to
// zero. Default false: the batch pipeline keeps negative corrected
// values.
func (c *Config) GetClampNegatives() bool {
	if c.ClampNegatives != nil {
		return *c.ClampNegatives
	}
	return false
}

// GetReferenceSection returns the section used for ratio normalization.
// Default "S1", the conventional reference.
func (c *Config) GetReferenceSection() string {
	if c.ReferenceSection != nil {
		return *c.ReferenceSection
	}
	return "S1"
}

// GetSectionUnits returns the label for section dose values. Default
// "grays".
func (c *Config) GetSectionUnits() string {
	if c.SectionUnits != nil {
		return *c.SectionUnits
	}
	return "grays"
}

// GetDebugLog returns whether per-well diagnostics are logged. Default
// false.
func (c *Config) GetDebugLog() bool {
	if c.DebugLog != nil {
		return *c.DebugLog
	}
	return false
}

// SectionSet builds the engine's section definitions from the stored
// rectangles, named S1..Sn in order. With no stored sections the
// conventional six-quadrant layout applies.
func (c *Config) SectionSet() analysis.SectionSet {
	if len(c.Sections) == 0 {
		return analysis.DefaultSections()
	}
	out := make(analysis.SectionSet, 0, len(c.Sections))
	for i, r := range c.Sections {
		out = append(out, analysis.RectSection(fmt.Sprintf("S%d", i+1), r[0], r[1], r[2], r[3]))
	}
	return out
}

// MaskSetFor returns the masks for one plate-assay key. A key with no
// stored inclusion mask includes every well; a key with no stored
// control mask has no controls.
func (c *Config) MaskSetFor(key string) (analysis.MaskSet, error) {
	ms := analysis.MaskSet{Include: analysis.AllWells()}

	if flags, ok := c.Masks[key]; ok {
		m, err := analysis.NewMaskFromInts(flags)
		if err != nil {
			return ms, fmt.Errorf("mask for %s: %w", key, err)
		}
		ms.Include = m
	}
	if flags, ok := c.NegCtrlMasks[key]; ok {
		m, err := analysis.NewMaskFromInts(flags)
		if err != nil {
			return ms, fmt.Errorf("control mask for %s: %w", key, err)
		}
		ms.Control = m
	}
	return ms, nil
}

// DosesFor returns the per-section dose labels for a key, padded or
// truncated to the section count. Missing doses are zero.
func (c *Config) DosesFor(key string, sectionCount int) []float64 {
	out := make([]float64, sectionCount)
	copy(out, c.SectionDoses[key])
	return out
}

// AddRecentFile pushes a path onto the recent-files list, most recent
// first, dropping duplicates and capping the length.
func (c *Config) AddRecentFile(path string) {
	files := []string{path}
	for _, f := range c.RecentFiles {
		if f != path {
			files = append(files, f)
		}
	}
	if len(files) > maxRecentFiles {
		files = files[:maxRecentFiles]
	}
	c.RecentFiles = files
}
