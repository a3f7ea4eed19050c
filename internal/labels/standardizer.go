// Package labels maps raw triage grades to the fixed ordinal encoding
// {FalsePositive:0, BenignPositive:1, TruePositive:2}.
package labels

import "fmt"

// Label values.
const (
	FalsePositive  int8 = 0
	BenignPositive int8 = 1
	TruePositive   int8 = 2
)

// ErrUnlabeled marks a row with no triage grade. Such rows are routed to
// the unlabeled audit bucket, not rejected.
var ErrUnlabeled = fmt.Errorf("labels: row has no triage grade")

// Error reports a triage grade outside the known set. Unknown grades fail
// loudly instead of defaulting so class counts stay trustworthy.
type Error struct {
	Value string
}

func (e *Error) Error() string {
	return fmt.Sprintf("labels: unknown triage grade %q", e.Value)
}

// Standardizer is an immutable grade lookup. Construct one per pipeline
// run and share it freely; it has no mutable state.
type Standardizer struct {
	grades map[string]int8
}

// NewStandardizer builds the fixed lookup. The encoded forms "0".."2" are
// accepted so standardization is idempotent over its own output.
func NewStandardizer() *Standardizer {
	return &Standardizer{grades: map[string]int8{
		"FalsePositive":  FalsePositive,
		"BenignPositive": BenignPositive,
		"TruePositive":   TruePositive,
		"0":              FalsePositive,
		"1":              BenignPositive,
		"2":              TruePositive,
	}}
}

// Standardize maps one raw grade. Empty input returns ErrUnlabeled;
// anything else outside the lookup returns *Error.
func (s *Standardizer) Standardize(raw string) (int8, error) {
	if raw == "" {
		return 0, ErrUnlabeled
	}
	label, ok := s.grades[raw]
	if !ok {
		return 0, &Error{Value: raw}
	}
	return label, nil
}

// Name returns the canonical string form for an encoded label.
func Name(label int8) string {
	switch label {
	case FalsePositive:
		return "FalsePositive"
	case BenignPositive:
		return "BenignPositive"
	case TruePositive:
		return "TruePositive"
	}
	return fmt.Sprintf("unknown(%d)", label)
}

// Map returns the canonical grade-to-code table for the feature manifest.
func Map() map[string]int {
	return map[string]int{
		"FalsePositive":  int(FalsePositive),
		"BenignPositive": int(BenignPositive),
		"TruePositive":   int(TruePositive),
	}
}
