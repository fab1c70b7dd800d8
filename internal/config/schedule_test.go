package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/medieye/med-reminder/internal/domain"
)

func TestParseSchedule(t *testing.T) {
	slots, err := ParseSchedule([]byte("schedule:\n  Morning: \"09:00\"\n  Night: \"22:00\"\n"))
	if err != nil {
		t.Fatal(err)
	}

	want := []domain.Slot{
		{Label: "Morning", Hour: 9, Minute: 0},
		{Label: "Night", Hour: 22, Minute: 0},
	}
	if !reflect.DeepEqual(slots, want) {
		t.Errorf("got %+v, want %+v", slots, want)
	}
}

func TestParseSchedule_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "schedule: [unterminated"},
		{"missing key", "slots:\n  Morning: \"09:00\"\n"},
		{"list instead of map", "schedule:\n  - \"09:00\"\n"},
		{"empty map", "schedule: {}\n"},
		{"bad hour", "schedule:\n  Morning: \"25:00\"\n"},
		{"bad minute", "schedule:\n  Morning: \"09:7\"\n"},
		{"no colon", "schedule:\n  Morning: \"0900\"\n"},
		{"duplicate", "schedule:\n  Morning: \"09:00\"\n  Morning: \"10:00\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSchedule([]byte(tt.doc)); err == nil {
				t.Errorf("expected error for %q", tt.doc)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in     string
		hour   int
		minute int
		ok     bool
	}{
		{"09:00", 9, 0, true},
		{"9:05", 9, 5, true},
		{"23:59", 23, 59, true},
		{"00:00", 0, 0, true},
		{"24:00", 0, 0, false},
		{"12:60", 0, 0, false},
		{"ab:cd", 0, 0, false},
		{"", 0, 0, false},
	}

	for _, tt := range tests {
		h, m, err := ParseClock(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseClock(%q) error = %v, want ok=%v", tt.in, err, tt.ok)
			continue
		}
		if tt.ok && (h != tt.hour || m != tt.minute) {
			t.Errorf("ParseClock(%q) = %d:%d, want %d:%d", tt.in, h, m, tt.hour, tt.minute)
		}
	}
}

func TestLoadSchedule(t *testing.T) {
	slots, err := LoadSchedule("")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(slots, DefaultSchedule) {
		t.Errorf("expected default schedule, got %+v", slots)
	}

	path := filepath.Join(t.TempDir(), "schedule.yaml")
	os.WriteFile(path, []byte("schedule:\n  Lunch: \"12:30\"\n"), 0o644)
	slots, err = LoadSchedule(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 1 || slots[0].Clock() != "12:30" {
		t.Errorf("unexpected slots %+v", slots)
	}

	_, err = LoadSchedule(filepath.Join(t.TempDir(), "missing.yaml"))
	var cerr *domain.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Errorf("expected ConfigurationError for missing file, got %v", err)
	}
}
