// Package app assembles the router and worker graphs shared by the binaries.
package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"campus-assistant/internal/catalog"
	"campus-assistant/internal/config"
	"campus-assistant/internal/integrations/objectstore"
	"campus-assistant/internal/integrations/openai"
	"campus-assistant/internal/integrations/paramstore"
	"campus-assistant/internal/reference"
	"campus-assistant/internal/repository"
	"campus-assistant/internal/session"
	"campus-assistant/internal/usecase"
	"campus-assistant/internal/worker"
)

// Reference is the read side every capability draws on.
type Reference struct {
	Catalog *catalog.Catalog
	Lookup  worker.Lookup
}

// FromDataset serves everything from one dataset.
func FromDataset(ds *reference.Dataset) Reference {
	return Reference{Catalog: catalog.New(ds, ds, ds), Lookup: ds}
}

// FromAWS reads FAQs and rules from S3, and buildings, schedules and
// instructors from DynamoDB or, in S3 data mode, from S3 as well.
func FromAWS(awsCfg aws.Config, cfg config.Config) (Reference, error) {
	var ds *reference.Dataset
	if cfg.Bucket != "" {
		store, err := objectstore.New(awss3.NewFromConfig(awsCfg), cfg.Bucket)
		if err != nil {
			return Reference{}, err
		}
		ds, err = reference.NewDataset(store, reference.Keys{
			Buildings:   cfg.BuildingsKey,
			Schedules:   cfg.SchedulesKey,
			Instructors: cfg.InstructorsKey,
			FAQs:        cfg.FAQsKey,
			Rules:       cfg.RulesKey,
		})
		if err != nil {
			return Reference{}, err
		}
	}

	if cfg.S3Data {
		if ds == nil {
			return Reference{}, errors.New("app: S3 data mode needs a bucket")
		}
		return FromDataset(ds), nil
	}

	tables, err := repository.NewReferenceTables(awsdynamodb.NewFromConfig(awsCfg), repository.Tables{
		Buildings:   cfg.TableBuildings,
		Schedules:   cfg.TableSchedules,
		Instructors: cfg.TableInstructors,
	})
	if err != nil {
		return Reference{}, err
	}
	if ds == nil {
		return Reference{Catalog: catalog.New(nil, tables, nil), Lookup: tables}, nil
	}
	return Reference{Catalog: catalog.New(ds, tables, ds), Lookup: tables}, nil
}

// NewLocalWorker builds the in-process capabilities. The generative FAQ
// fallback is attached when enabled.
func NewLocalWorker(awsCfg aws.Config, cfg config.Config, ref Reference, logger *slog.Logger) (*worker.Local, error) {
	opts := []worker.LocalOption{worker.WithLogger(logger)}
	if cfg.GenerativeFAQ {
		params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, err
		}
		llm, err := openai.NewClient(params, cfg.ParamPrefix, openai.WithTemperature(0.2), openai.WithRateLimit(5, 5))
		if err != nil {
			return nil, err
		}
		gen, err := worker.NewGenerator(params, llm, cfg.ParamPrefix)
		if err != nil {
			return nil, err
		}
		opts = append(opts, worker.WithAnswerer(gen))
	}
	return worker.NewLocal(ref.Catalog, ref.Lookup, opts...)
}

// NewDispatcher returns the local worker or, in lambda mode, the remote
// adapter.
func NewDispatcher(awsCfg aws.Config, cfg config.Config, ref Reference, logger *slog.Logger) (worker.Dispatcher, error) {
	switch cfg.WorkerMode {
	case config.WorkerModeLambda:
		return worker.NewRemote(awslambda.NewFromConfig(awsCfg), cfg.WorkerFunctions, logger)
	case config.WorkerModeLocal, "":
		return NewLocalWorker(awsCfg, cfg, ref, logger)
	default:
		return nil, fmt.Errorf("app: unknown worker mode %q", cfg.WorkerMode)
	}
}

// NewMemory returns the DynamoDB-backed memory, or a no-op memory when no
// conversations table is configured.
func NewMemory(awsCfg aws.Config, cfg config.Config, logger *slog.Logger) (*session.Memory, error) {
	if cfg.TableConversations == "" {
		return session.NewMemory(nil, false, logger), nil
	}
	store, err := repository.NewMemoryStore(awsdynamodb.NewFromConfig(awsCfg), cfg.TableConversations, cfg.ConversationsTTL)
	if err != nil {
		return nil, err
	}
	return session.NewMemory(store, cfg.HistoryEnabled, logger), nil
}

// NewRouter wires the turn router from its parts.
func NewRouter(cfg config.Config, cat *catalog.Catalog, d worker.Dispatcher, m *session.Memory, logger *slog.Logger) (*usecase.Router, error) {
	return usecase.NewRouter(cat, d, m, RouterOptions(cfg), logger)
}

func RouterOptions(cfg config.Config) usecase.Options {
	return usecase.Options{
		SchedulesEnabled:   cfg.SchedulesEnabled,
		InstructorsEnabled: cfg.InstructorsEnabled,
		DefaultStudentID:   cfg.DefaultStudentID,
		RecentTurnsLimit:   cfg.RecentTurnsLimit,
	}
}
