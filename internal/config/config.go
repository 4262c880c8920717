// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"campus-assistant/internal/worker"
)

const (
	WorkerModeLocal  = "local"
	WorkerModeLambda = "lambda"
)

// Config is the validated environment of the router and worker binaries.
type Config struct {
	LogLevel slog.Level

	TableBuildings     string
	TableSchedules     string
	TableInstructors   string
	TableConversations string

	Bucket         string
	FAQsKey        string `validate:"required"`
	RulesKey       string
	S3Data         bool
	BuildingsKey   string
	SchedulesKey   string
	InstructorsKey string

	SchedulesEnabled   bool
	InstructorsEnabled bool
	HistoryEnabled     bool
	GenerativeFAQ      bool
	ParamPrefix        string

	DefaultStudentID string `validate:"required"`
	ConversationsTTL time.Duration
	TTLDays          int `validate:"gt=0"`
	RecentTurnsLimit int `validate:"gte=1,lte=100"`

	WorkerMode      string `validate:"oneof=local lambda"`
	WorkerFunctions map[worker.Capability]string
}

// Load reads a .env file when one exists, then the environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables already set.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup and validates it.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	e := env{lookup: lookup}
	cfg := Config{
		LogLevel: e.level("LOG_LEVEL"),

		TableBuildings:     e.str("TABLE_BUILDINGS", ""),
		TableSchedules:     e.str("TABLE_SCHEDULES", ""),
		TableInstructors:   e.str("TABLE_INSTRUCTORS", ""),
		TableConversations: e.str("TABLE_CONVERSATIONS", ""),

		Bucket:         e.str("S3_BUCKET_FAQS", ""),
		FAQsKey:        e.str("S3_FAQS_KEY", "faqs/faqs.json"),
		RulesKey:       e.str("S3_NLU_RULES_KEY", "config/nlu_rules.json"),
		S3Data:         e.bool("FEATURE_S3_DATA", false),
		BuildingsKey:   e.str("S3_BUILDINGS_KEY", "data/buildings.json"),
		SchedulesKey:   e.str("S3_SCHEDULES_KEY", "data/schedules.json"),
		InstructorsKey: e.str("S3_INSTRUCTORS_KEY", "data/instructors.json"),

		SchedulesEnabled:   e.bool("FEATURE_SCHEDULES", true),
		InstructorsEnabled: e.bool("FEATURE_INSTRUCTORS", true),
		HistoryEnabled:     e.bool("FEATURE_CONVO_HISTORY", true),
		GenerativeFAQ:      e.bool("FEATURE_GENERATIVE_FAQ", false),
		ParamPrefix:        strings.TrimRight(e.str("PARAM_PREFIX", ""), "/"),

		DefaultStudentID: e.str("DEFAULT_STUDENT_ID", "student123"),
		TTLDays:          e.int("CONVERSATIONS_TTL_DAYS", 30),
		RecentTurnsLimit: e.int("RECENT_TURNS_LIMIT", 5),

		WorkerMode: strings.ToLower(e.str("WORKER_MODE", WorkerModeLocal)),
		WorkerFunctions: map[worker.Capability]string{
			worker.CapabilityHours:      e.str("WORKER_FUNCTION_HOURS", ""),
			worker.CapabilityLocation:   e.str("WORKER_FUNCTION_LOCATION", ""),
			worker.CapabilitySchedule:   e.str("WORKER_FUNCTION_SCHEDULE", ""),
			worker.CapabilityInstructor: e.str("WORKER_FUNCTION_INSTRUCTOR", ""),
			worker.CapabilityFAQ:        e.str("WORKER_FUNCTION_FAQ", ""),
		},
	}
	cfg.ConversationsTTL = time.Duration(cfg.TTLDays) * 24 * time.Hour

	if len(e.errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(e.errs...))
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateConfig, Config{})
	return v
}

// validateConfig enforces the cross-field requirements.
func validateConfig(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	if !cfg.S3Data && cfg.TableBuildings == "" {
		sl.ReportError(cfg.TableBuildings, "TableBuildings", "TableBuildings", "required_without_s3_data", "")
	}
	if cfg.S3Data && cfg.Bucket == "" {
		sl.ReportError(cfg.Bucket, "Bucket", "Bucket", "required_with_s3_data", "")
	}
	if cfg.GenerativeFAQ && cfg.ParamPrefix == "" {
		sl.ReportError(cfg.ParamPrefix, "ParamPrefix", "ParamPrefix", "required_with_generative_faq", "")
	}
}

type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) str(key, def string) string {
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func (e *env) bool(key string, def bool) bool {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid boolean %q", key, raw))
		return def
	}
	return b
}

func (e *env) int(key string, def int) int {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return def
	}
	return n
}

func (e *env) level(key string) slog.Level {
	switch strings.ToUpper(e.str(key, "INFO")) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
