package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medvault-api/internal/config"
	"github.com/jwalitptl/medvault-api/internal/repository"
	"github.com/jwalitptl/medvault-api/internal/repository/csvstore"
	"github.com/jwalitptl/medvault-api/internal/repository/postgres"
	drugsvc "github.com/jwalitptl/medvault-api/internal/service/drug"
	patientsvc "github.com/jwalitptl/medvault-api/internal/service/patient"
	"github.com/jwalitptl/medvault-api/internal/storage"
	"github.com/jwalitptl/medvault-api/pkg/logger"
	"github.com/jwalitptl/medvault-api/pkg/metrics"
	"github.com/jwalitptl/medvault-api/pkg/openfda"
)

const metricsNamespace = "medvault"

// app holds what every command needs: config, logging, the stores and the
// core services.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	db       *sqlx.DB
	patients repository.PatientRepository
	drugMap  repository.DrugMapRepository
	files    *storage.Namespaces

	patientSvc *patientsvc.Service
	drugSvc    *drugsvc.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	a.setupLogging()

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(metricsNamespace, a.registry)

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.files = storage.NewNamespaces(cfg.Uploads.Dir, cfg.Uploads.MaxSizeBytes)
	a.patientSvc = patientsvc.NewService(a.patients, a.files, a.log, a.metrics)

	labels := openfda.NewClient(openfda.Config{
		BaseURL: cfg.Drugs.BaseURL,
		Timeout: cfg.Drugs.Timeout,
	})
	a.drugSvc = drugsvc.NewService(a.drugMap, labels, cfg.Drugs.CacheTTL, a.log, a.metrics)

	return a, nil
}

// setupLogging configures the service logger and the global one used by
// the HTTP middleware from the same settings.
func (a *app) setupLogging() {
	level := logger.ParseLevel(a.cfg.Log.Level)
	a.log = logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       a.cfg.Log.JSON,
	})

	zerolog.SetGlobalLevel(level)
	log.Logger = *a.log.Zerolog()
}

func (a *app) openStores(ctx context.Context) error {
	var err error

	switch a.cfg.Store.Driver {
	case "postgres":
		a.db, err = postgres.NewDB(a.cfg.Database)
		if err != nil {
			return err
		}
		if err := postgres.Migrate(ctx, a.db); err != nil {
			return err
		}
		a.patients = postgres.NewPatientRepository(a.db, a.metrics)
	default:
		if err := os.MkdirAll(a.cfg.Store.DataDir, 0o755); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
		a.patients, err = csvstore.NewPatientRepository(a.cfg.Store.PatientsPath(), a.metrics)
		if err != nil {
			return err
		}
	}

	// the drug map stays a CSV file with either backend
	a.drugMap, err = csvstore.NewDrugMapRepository(a.cfg.Store.DrugMapPath())
	return err
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error(err, "failed to close database")
		}
	}
}
