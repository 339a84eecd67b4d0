package data

import (
	"fmt"
)

// SyntheticConfig describes a generated dataset.
type SyntheticConfig struct {
	Examples      int     `yaml:"examples"`       // Number of examples
	Channels      int     `yaml:"channels"`       // Image channels
	Height        int     `yaml:"height"`         // Image height
	Width         int     `yaml:"width"`          // Image width
	Classes       int     `yaml:"classes"`        // Label space size
	ActiveClasses int     `yaml:"active_classes"` // Labels actually used (0 = all); 1 makes every example class 0
	Noise         float64 `yaml:"noise"`          // Standard deviation of per-example noise
	Seed          int64   `yaml:"seed"`           // Seed for templates and noise
}

// Synthetic is a deterministic, learnable dataset: example i has label
// i mod ActiveClasses and is that class's fixed random template plus
// Gaussian noise. Examples are generated on demand from (Seed, i), so the
// dataset holds only the templates in memory.
type Synthetic struct {
	cfg       SyntheticConfig
	templates [][]float32
}

// NewSynthetic validates cfg and draws the class templates.
func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	if cfg.Examples < 1 || cfg.Channels < 1 || cfg.Height < 1 || cfg.Width < 1 || cfg.Classes < 1 {
		return nil, fmt.Errorf("data: invalid synthetic config %+v", cfg)
	}
	if cfg.ActiveClasses == 0 {
		cfg.ActiveClasses = cfg.Classes
	}
	if cfg.ActiveClasses < 1 || cfg.ActiveClasses > cfg.Classes {
		return nil, fmt.Errorf("data: active classes %d not in [1, %d]", cfg.ActiveClasses, cfg.Classes)
	}
	if cfg.Noise < 0 {
		return nil, fmt.Errorf("data: negative noise %v", cfg.Noise)
	}

	size := cfg.Channels * cfg.Height * cfg.Width
	s := &Synthetic{cfg: cfg, templates: make([][]float32, cfg.ActiveClasses)}
	for c := range s.templates {
		rng := newRNG(cfg.Seed, templateStream, uint64(c))
		t := make([]float32, size)
		for i := range t {
			t[i] = float32(rng.NormFloat64())
		}
		s.templates[c] = t
	}
	return s, nil
}

// Len returns the number of examples.
func (s *Synthetic) Len() int { return s.cfg.Examples }

// Shape returns the image shape.
func (s *Synthetic) Shape() (int, int, int) { return s.cfg.Channels, s.cfg.Height, s.cfg.Width }

// Classes returns the label space size.
func (s *Synthetic) Classes() int { return s.cfg.Classes }

// Get generates example idx.
func (s *Synthetic) Get(idx int, dst []float32) (int, error) {
	if err := checkIndex(idx, s.cfg.Examples); err != nil {
		return 0, err
	}
	label := idx % s.cfg.ActiveClasses
	t := s.templates[label]
	if len(dst) != len(t) {
		return 0, fmt.Errorf("data: destination holds %d values, image has %d", len(dst), len(t))
	}
	if s.cfg.Noise == 0 {
		copy(dst, t)
		return label, nil
	}
	rng := newRNG(s.cfg.Seed, sampleStream, uint64(idx))
	for i := range dst {
		dst[i] = t[i] + float32(s.cfg.Noise*rng.NormFloat64())
	}
	return label, nil
}
