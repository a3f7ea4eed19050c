package labels

import (
	"errors"
	"testing"
)

func TestStandardizeKnownGrades(t *testing.T) {
	s := NewStandardizer()
	tests := []struct {
		raw  string
		want int8
	}{
		{"FalsePositive", 0},
		{"BenignPositive", 1},
		{"TruePositive", 2},
	}
	for _, tt := range tests {
		got, err := s.Standardize(tt.raw)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("%s: expected %d, got %d", tt.raw, tt.want, got)
		}
	}
}

func TestStandardizeIsIdempotentOnEncodedValues(t *testing.T) {
	s := NewStandardizer()
	for _, raw := range []string{"0", "1", "2"} {
		got, err := s.Standardize(raw)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", raw, err)
		}
		again, err := s.Standardize(Name(got))
		if err != nil {
			t.Fatalf("re-standardize %s: unexpected error: %v", Name(got), err)
		}
		if again != got {
			t.Fatalf("expected idempotent mapping for %s, got %d then %d", raw, got, again)
		}
	}
}

func TestStandardizeUnknownGradeFails(t *testing.T) {
	s := NewStandardizer()
	_, err := s.Standardize("Benign")
	var lerr *Error
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *labels.Error, got %v", err)
	}
	if lerr.Value != "Benign" {
		t.Fatalf("unexpected value in error: %q", lerr.Value)
	}
}

func TestStandardizeEmptyGradeIsUnlabeled(t *testing.T) {
	s := NewStandardizer()
	if _, err := s.Standardize(""); !errors.Is(err, ErrUnlabeled) {
		t.Fatalf("expected ErrUnlabeled, got %v", err)
	}
}
