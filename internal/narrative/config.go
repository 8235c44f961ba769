package narrative

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// Params are the tunable knobs of the classifier. All fields have working
// defaults; tests and callers override specific fields through Overrides.
type Params struct {
	// WindowDays bounds the classification window ending at window_end.
	WindowDays int `yaml:"window_days"`
	// RecencyHalfLifeDays controls exponential decay of document weight
	// with age.
	RecencyHalfLifeDays float64 `yaml:"recency_half_life_days"`
	// MinEventScore is the severity a non-macro class needs to become the
	// primary event.
	MinEventScore float64 `yaml:"min_event_score"`
	// MacroThreshold is the severity the macro-rotation class needs to
	// become primary when no company-specific class qualifies.
	MacroThreshold float64 `yaml:"macro_threshold"`
	// StructuralThreshold divides ONE_OFF from STRUCTURAL_RISK.
	StructuralThreshold float64 `yaml:"structural_threshold"`
	// SourceWeights maps document source types to evidentiary weight.
	SourceWeights map[string]float64 `yaml:"source_weights"`
}

// DefaultParams returns the built-in parameter set.
func DefaultParams() *Params {
	return &Params{
		WindowDays:          30,
		RecencyHalfLifeDays: 10,
		MinEventScore:       10,
		MacroThreshold:      8,
		StructuralThreshold: 50,
		SourceWeights: map[string]float64{
			"SEC_FILING":       1.0,
			"EARNINGS_RELEASE": 0.9,
			"PRESS_RELEASE":    0.7,
			"NEWS":             0.5,
		},
	}
}

// Overrides is a partial Params. Nil fields keep the default; SourceWeights
// entries replace only the named source types. An override can never remove
// a key.
type Overrides struct {
	WindowDays          *int               `yaml:"window_days"`
	RecencyHalfLifeDays *float64           `yaml:"recency_half_life_days"`
	MinEventScore       *float64           `yaml:"min_event_score"`
	MacroThreshold      *float64           `yaml:"macro_threshold"`
	StructuralThreshold *float64           `yaml:"structural_threshold"`
	SourceWeights       map[string]float64 `yaml:"source_weights"`
}

// Apply merges o over a copy of base and returns the merged params. base nil
// means DefaultParams.
func (o *Overrides) Apply(base *Params) *Params {
	if base == nil {
		base = DefaultParams()
	}
	merged := *base
	merged.SourceWeights = make(map[string]float64, len(base.SourceWeights))
	for k, v := range base.SourceWeights {
		merged.SourceWeights[k] = v
	}
	if o == nil {
		return &merged
	}
	if o.WindowDays != nil {
		merged.WindowDays = *o.WindowDays
	}
	if o.RecencyHalfLifeDays != nil {
		merged.RecencyHalfLifeDays = *o.RecencyHalfLifeDays
	}
	if o.MinEventScore != nil {
		merged.MinEventScore = *o.MinEventScore
	}
	if o.MacroThreshold != nil {
		merged.MacroThreshold = *o.MacroThreshold
	}
	if o.StructuralThreshold != nil {
		merged.StructuralThreshold = *o.StructuralThreshold
	}
	for k, v := range o.SourceWeights {
		merged.SourceWeights[k] = v
	}
	return &merged
}

// LoadOverrides reads a YAML tuning file into an Overrides set. A missing
// file is not an error to the caller that treats tuning as optional; this
// function reports it and lets the caller decide.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read narrative tuning: %w", err)
	}
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse narrative tuning %s: %w", path, err)
	}
	return &o, nil
}
