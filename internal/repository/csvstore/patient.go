package csvstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/repository"
	"github.com/jwalitptl/medvault-api/pkg/metrics"
)

var patientColumns = []string{
	"patient_id",
	"name",
	"dob",
	"blood_group",
	"current_medications",
	"medication_history",
	"pin",
}

type patientRepository struct {
	path    string
	mu      sync.RWMutex
	metrics *metrics.Metrics
}

// NewPatientRepository opens the patients file at path, creating it with an
// empty schema when it does not exist yet.
func NewPatientRepository(path string, m *metrics.Metrics) (repository.PatientRepository, error) {
	r := &patientRepository{path: path, metrics: m}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := writeTable(path, patientColumns, nil); err != nil {
			return nil, fmt.Errorf("failed to initialize patient store: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat patient store: %w", err)
	}
	return r, nil
}

func (r *patientRepository) Load(ctx context.Context) (patients []*model.Patient, err error) {
	start := time.Now()
	defer func() { r.metrics.ObserveStore("load", time.Since(start).Seconds(), err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	t, err := readTable(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return []*model.Patient{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load patients: %w", err)
	}

	patients = make([]*model.Patient, 0, len(t.rows))
	for _, row := range t.rows {
		patients = append(patients, &model.Patient{
			ID:                 t.get(row, "patient_id"),
			Name:               t.get(row, "name"),
			DateOfBirth:        t.get(row, "dob"),
			BloodGroup:         model.BloodGroup(t.get(row, "blood_group")),
			CurrentMedications: model.SplitList(t.get(row, "current_medications")),
			MedicationHistory:  model.SplitList(t.get(row, "medication_history")),
			PIN:                t.get(row, "pin"),
		})
	}
	return patients, nil
}

func (r *patientRepository) Save(ctx context.Context, patients []*model.Patient) (err error) {
	start := time.Now()
	defer func() { r.metrics.ObserveStore("save", time.Since(start).Seconds(), err) }()

	if err := ctx.Err(); err != nil {
		return err
	}

	rows := make([][]string, 0, len(patients))
	for _, p := range patients {
		rows = append(rows, []string{
			p.ID,
			p.Name,
			p.DateOfBirth,
			string(p.BloodGroup),
			model.JoinList(p.CurrentMedications),
			model.JoinList(p.MedicationHistory),
			p.PIN,
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := writeTable(r.path, patientColumns, rows); err != nil {
		return fmt.Errorf("failed to save patients: %w", err)
	}
	return nil
}

func (r *patientRepository) Ping(ctx context.Context) error {
	_, err := os.Stat(r.path)
	return err
}
