package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	yaml "go.yaml.in/yaml/v3"

	"github.com/medieye/med-reminder/internal/domain"
)

// DefaultSchedule is used when no schedule file is configured.
var DefaultSchedule = []domain.Slot{
	{Label: "Morning", Hour: 9, Minute: 0},
	{Label: "Afternoon", Hour: 13, Minute: 0},
	{Label: "Evening", Hour: 18, Minute: 0},
	{Label: "Night", Hour: 22, Minute: 0},
}

type scheduleFile struct {
	Schedule yaml.Node `yaml:"schedule"`
}

// LoadSchedule reads the slot table from path, or returns DefaultSchedule
// when path is empty. Slots keep file order.
func LoadSchedule(path string) ([]domain.Slot, error) {
	if path == "" {
		out := make([]domain.Slot, len(DefaultSchedule))
		copy(out, DefaultSchedule)
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "SCHEDULE_FILE", Err: err}
	}
	slots, err := ParseSchedule(data)
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "SCHEDULE_FILE", Err: err}
	}
	return slots, nil
}

// ParseSchedule decodes a document of the form
//
//	schedule:
//	  Morning: "09:00"
func ParseSchedule(data []byte) ([]domain.Slot, error) {
	var f scheduleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if f.Schedule.Kind != yaml.MappingNode {
		return nil, errors.New("schedule must be a mapping of slot label to HH:MM")
	}

	var slots []domain.Slot
	seen := make(map[string]bool)
	for i := 0; i+1 < len(f.Schedule.Content); i += 2 {
		label := strings.TrimSpace(f.Schedule.Content[i].Value)
		value := f.Schedule.Content[i+1].Value
		if label == "" {
			return nil, fmt.Errorf("line %d: empty slot label", f.Schedule.Content[i].Line)
		}
		if seen[label] {
			return nil, fmt.Errorf("line %d: duplicate slot %q", f.Schedule.Content[i].Line, label)
		}
		seen[label] = true

		hour, minute, err := ParseClock(value)
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", label, err)
		}
		slots = append(slots, domain.Slot{Label: label, Hour: hour, Minute: minute})
	}

	if len(slots) == 0 {
		return nil, errors.New("schedule is empty")
	}
	return slots, nil
}

// ParseClock parses a 24h "HH:MM" time of day.
func ParseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || len(m) != 2 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
