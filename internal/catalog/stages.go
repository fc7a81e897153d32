package catalog

import (
	"fmt"
	"strings"

	"github.com/stagetrak/stagetrak-backend/pkg/config"
)

// Stage is one entry of the fixed, ordered manufacturing sequence.
type Stage struct {
	Code        string
	DisplayName string
	Sequence    int
}

// Stages is the immutable stage catalog, loaded once at boot. Sequence
// numbers are assigned in declaration order starting at 1.
type Stages struct {
	ordered []Stage
	byCode  map[string]Stage
}

// LoadStages parses the configured catalog string ("CODE:Name,CODE:Name,...").
func LoadStages(cfg config.CatalogConfig) (*Stages, error) {
	raw := strings.TrimSpace(cfg.Stages)
	if raw == "" {
		return nil, fmt.Errorf("stage catalog is empty")
	}

	entries := strings.Split(raw, ",")
	ordered := make([]Stage, 0, len(entries))
	byCode := make(map[string]Stage, len(entries))
	for i, entry := range entries {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 2)
		code := strings.TrimSpace(parts[0])
		if code == "" {
			return nil, fmt.Errorf("stage catalog entry %d has no code", i+1)
		}
		if _, dup := byCode[code]; dup {
			return nil, fmt.Errorf("stage catalog repeats code %q", code)
		}
		name := code
		if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
			name = strings.TrimSpace(parts[1])
		}
		stage := Stage{Code: code, DisplayName: name, Sequence: i + 1}
		ordered = append(ordered, stage)
		byCode[code] = stage
	}

	return &Stages{ordered: ordered, byCode: byCode}, nil
}

// Len returns the number of stages in the catalog.
func (s *Stages) Len() int {
	return len(s.ordered)
}

// All returns the stages in catalog order.
func (s *Stages) All() []Stage {
	out := make([]Stage, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// ByCode looks up a stage by its code.
func (s *Stages) ByCode(code string) (Stage, bool) {
	stage, ok := s.byCode[code]
	return stage, ok
}

// First returns the catalog's first stage. Replacement quantities are only
// meaningful there.
func (s *Stages) First() Stage {
	return s.ordered[0]
}

// Last returns the catalog's final stage.
func (s *Stages) Last() Stage {
	return s.ordered[len(s.ordered)-1]
}

// IsFirst reports whether code names the first stage.
func (s *Stages) IsFirst(code string) bool {
	return len(s.ordered) > 0 && s.ordered[0].Code == code
}

// IsLast reports whether code names the final stage.
func (s *Stages) IsLast(code string) bool {
	return len(s.ordered) > 0 && s.ordered[len(s.ordered)-1].Code == code
}

// Prev returns the stage immediately before code in catalog order.
func (s *Stages) Prev(code string) (Stage, bool) {
	stage, ok := s.byCode[code]
	if !ok || stage.Sequence <= 1 {
		return Stage{}, false
	}
	return s.ordered[stage.Sequence-2], true
}

// Next returns the stage immediately after code in catalog order.
func (s *Stages) Next(code string) (Stage, bool) {
	stage, ok := s.byCode[code]
	if !ok || stage.Sequence >= len(s.ordered) {
		return Stage{}, false
	}
	return s.ordered[stage.Sequence], true
}
