// Package reference decodes the static campus datasets (buildings,
// schedules, instructors, FAQs and NLU rules) from a key/bytes fetcher.
// Keys ending in .yaml or .yml are decoded as YAML, everything else as JSON.
package reference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"campus-assistant/internal/domain"
)

// ErrNotFound is returned by a Fetcher when the key does not exist.
var ErrNotFound = errors.New("reference: object not found")

// Fetcher returns the raw bytes stored under key.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// Keys names the object holding each dataset. Empty keys disable the
// dataset.
type Keys struct {
	Buildings   string
	Schedules   string
	Instructors string
	FAQs        string
	Rules       string
}

// Dataset reads reference data through a Fetcher. It does no caching; wrap
// it in a catalog for process-wide reuse.
type Dataset struct {
	fetcher Fetcher
	keys    Keys
}

// NewDataset creates a Dataset backed by fetcher.
func NewDataset(fetcher Fetcher, keys Keys) (*Dataset, error) {
	if fetcher == nil {
		return nil, errors.New("reference: fetcher must not be nil")
	}
	return &Dataset{fetcher: fetcher, keys: keys}, nil
}

type faqDocument struct {
	FAQs []domain.FAQ `json:"faqs" yaml:"faqs"`
}

type ruleDocument struct {
	Rules []domain.Rule `json:"rules" yaml:"rules"`
}

// ListBuildings returns every building in dataset order.
func (d *Dataset) ListBuildings(ctx context.Context) ([]domain.Building, error) {
	var out []domain.Building
	if err := d.load(ctx, d.keys.Buildings, &out); err != nil {
		return nil, fmt.Errorf("reference: buildings: %w", err)
	}
	return out, nil
}

// ListFAQs returns the FAQ list from a {"faqs": [...]} document.
func (d *Dataset) ListFAQs(ctx context.Context) ([]domain.FAQ, error) {
	var doc faqDocument
	if err := d.load(ctx, d.keys.FAQs, &doc); err != nil {
		return nil, fmt.Errorf("reference: faqs: %w", err)
	}
	return doc.FAQs, nil
}

// LoadRules returns the ordered rule table from a {"rules": [...]} document.
// A missing document yields no rules.
func (d *Dataset) LoadRules(ctx context.Context) ([]domain.Rule, error) {
	var doc ruleDocument
	if err := d.load(ctx, d.keys.Rules, &doc); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reference: rules: %w", err)
	}
	return doc.Rules, nil
}

// GetSchedule returns the schedule entry for the student and course, or nil.
func (d *Dataset) GetSchedule(ctx context.Context, studentID, courseCode string) (*domain.ScheduleEntry, error) {
	var entries []domain.ScheduleEntry
	if err := d.load(ctx, d.keys.Schedules, &entries); err != nil {
		return nil, fmt.Errorf("reference: schedules: %w", err)
	}
	for i := range entries {
		if sameKey(entries[i].StudentID, studentID) && sameKey(entries[i].CourseCode, courseCode) {
			return &entries[i], nil
		}
	}
	return nil, nil
}

// GetInstructor returns the instructor for the course, or nil.
func (d *Dataset) GetInstructor(ctx context.Context, courseCode string) (*domain.Instructor, error) {
	var instructors []domain.Instructor
	if err := d.load(ctx, d.keys.Instructors, &instructors); err != nil {
		return nil, fmt.Errorf("reference: instructors: %w", err)
	}
	for i := range instructors {
		if sameKey(instructors[i].CourseCode, courseCode) {
			return &instructors[i], nil
		}
	}
	return nil, nil
}

func (d *Dataset) load(ctx context.Context, key string, v any) error {
	if strings.TrimSpace(key) == "" {
		return ErrNotFound
	}
	raw, err := d.fetcher.Fetch(ctx, key)
	if err != nil {
		return err
	}
	return decode(key, raw, v)
}

func decode(key string, raw []byte, v any) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	switch strings.ToLower(path.Ext(key)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("decode yaml %q: %w", key, err)
		}
	default:
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("decode json %q: %w", key, err)
		}
	}
	return nil
}

func sameKey(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
