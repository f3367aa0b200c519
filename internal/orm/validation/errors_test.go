package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrors_Add(t *testing.T) {
	errs := NewErrors()

	errs.Add("title", "less than required length")
	errs.Add("email", "invalid email value")
	errs.Add("title", "invalid choice")

	if len(errs.Fields) != 2 {
		t.Errorf("expected 2 fields with errors, got %d", len(errs.Fields))
	}
	if len(errs.Fields["title"]) != 2 {
		t.Errorf("expected 2 errors for title, got %d", len(errs.Fields["title"]))
	}
	if errs.Count() != 3 {
		t.Errorf("expected count 3, got %d", errs.Count())
	}
}

func TestErrors_ZeroValue(t *testing.T) {
	var errs Errors
	if errs.HasErrors() {
		t.Error("expected zero value to have no errors")
	}
	errs.AddFieldError(NewFieldError("name", "Name", "required", nil))
	if !errs.HasErrors() {
		t.Error("expected HasErrors after AddFieldError")
	}
}

func TestErrors_Error(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string][]string
		want   string
	}{
		{
			name:   "empty",
			fields: map[string][]string{},
			want:   "validation failed",
		},
		{
			name:   "single",
			fields: map[string][]string{"email": {"invalid email value"}},
			want:   "validation failed: email: invalid email value",
		},
		{
			name: "sorted by field",
			fields: map[string][]string{
				"zeta":  {"required"},
				"alpha": {"required"},
			},
			want: "validation failed:\n  - alpha: required\n  - zeta: required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := &Errors{Fields: tt.fields}
			if got := errs.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrors_ErrorOrNil(t *testing.T) {
	var nilErrs *Errors
	if nilErrs.ErrorOrNil() != nil {
		t.Error("nil Errors should yield nil")
	}

	errs := NewErrors()
	if errs.ErrorOrNil() != nil {
		t.Error("empty Errors should yield nil")
	}

	errs.Add("a", "required")
	err := errs.ErrorOrNil()
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("Errors should match ErrValidation")
	}
}

func TestErrors_MarshalJSON(t *testing.T) {
	errs := NewErrors()
	errs.Add("firstname", "required")

	data, err := json.Marshal(errs)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"error":"validation_failed","fields":{"firstname":["required"]}}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestFieldError(t *testing.T) {
	fe := NewFieldError("firstname", "First name", "exceeded maximum length", "abcdef")
	fe.Limit = 5

	if got := fe.Error(); got != "First name: exceeded maximum length (5)" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := fmt.Errorf("assign Model: %w", fe)
	if !IsValidation(wrapped) {
		t.Error("wrapped FieldError should match ErrValidation")
	}

	got, ok := AsFieldError(wrapped)
	if !ok {
		t.Fatal("AsFieldError failed on wrapped error")
	}
	if got.Field != "firstname" || got.Value != "abcdef" {
		t.Errorf("unexpected field error %+v", got)
	}

	if _, ok := AsFieldError(errors.New("boom")); ok {
		t.Error("plain error should not be a FieldError")
	}
	if IsValidation(errors.New("boom")) {
		t.Error("plain error should not match ErrValidation")
	}
}

func TestFieldError_LabelFallback(t *testing.T) {
	fe := NewFieldError("age", "", "invalid integer value", "x")
	if !strings.HasPrefix(fe.Error(), "age: ") {
		t.Errorf("expected field name fallback, got %q", fe.Error())
	}
}
