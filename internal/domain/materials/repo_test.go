package materials

import (
	"context"
	"errors"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"Steel", "Steel", nil},
		{"  Steel  ", "Steel", nil},
		{"", "", ErrEmptyName},
		{"   ", "", ErrEmptyName},
	}

	for _, tt := range tests {
		got, err := validateName(tt.in)
		if !errors.Is(err, tt.wantErr) {
			t.Fatalf("%q: expected err %v, got %v", tt.in, tt.wantErr, err)
		}
		if got != tt.want {
			t.Fatalf("%q: expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestCreateInputValidation(t *testing.T) {
	r := NewRepo(nil)

	if _, err := r.Create(context.Background(), "", 5); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := r.Create(context.Background(), "Steel", -1); !errors.Is(err, ErrNegativeQuantity) {
		t.Fatalf("expected ErrNegativeQuantity, got %v", err)
	}
}
