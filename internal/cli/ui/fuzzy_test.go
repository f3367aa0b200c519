package ui

import (
	"reflect"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"model", "model", 0},
		{"café", "cafe", 1},
	}
	for _, tt := range tests {
		if got := Distance(tt.a, tt.b); got != tt.want {
			t.Errorf("Distance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSuggest(t *testing.T) {
	candidates := []string{"Post", "Comment", "SubModel", "Model"}

	tests := []struct {
		target string
		want   []string
	}{
		{"Pst", []string{"Post"}},
		{"model", []string{"Model"}},
		{"Modle", []string{"Model"}},
		{"Invoice", []string{}},
	}
	for _, tt := range tests {
		got := Suggest(tt.target, candidates, 2)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Suggest(%q) = %v, want %v", tt.target, got, tt.want)
		}
	}

	many := Suggest("a", []string{"b", "c", "d", "e"}, 1)
	if len(many) != MaxSuggestions {
		t.Errorf("expected %d suggestions, got %v", MaxSuggestions, many)
	}
}
