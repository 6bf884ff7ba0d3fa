package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/repository"
	"github.com/jwalitptl/medvault-api/pkg/metrics"
)

type patientRow struct {
	ID                 string `db:"patient_id"`
	Name               string `db:"name"`
	DateOfBirth        string `db:"dob"`
	BloodGroup         string `db:"blood_group"`
	CurrentMedications string `db:"current_medications"`
	MedicationHistory  string `db:"medication_history"`
	PIN                string `db:"pin"`
}

func (r patientRow) toModel() *model.Patient {
	return &model.Patient{
		ID:                 r.ID,
		Name:               r.Name,
		DateOfBirth:        r.DateOfBirth,
		BloodGroup:         model.BloodGroup(r.BloodGroup),
		CurrentMedications: model.SplitList(r.CurrentMedications),
		MedicationHistory:  model.SplitList(r.MedicationHistory),
		PIN:                r.PIN,
	}
}

func rowFromModel(p *model.Patient) patientRow {
	return patientRow{
		ID:                 p.ID,
		Name:               p.Name,
		DateOfBirth:        p.DateOfBirth,
		BloodGroup:         string(p.BloodGroup),
		CurrentMedications: model.JoinList(p.CurrentMedications),
		MedicationHistory:  model.JoinList(p.MedicationHistory),
		PIN:                p.PIN,
	}
}

type patientRepository struct {
	BaseRepository
	metrics *metrics.Metrics
}

func NewPatientRepository(db *sqlx.DB, m *metrics.Metrics) repository.PatientRepository {
	return &patientRepository{BaseRepository: NewBaseRepository(db), metrics: m}
}

func (r *patientRepository) Load(ctx context.Context) (patients []*model.Patient, err error) {
	start := time.Now()
	defer func() { r.metrics.ObserveStore("load", time.Since(start).Seconds(), err) }()

	query := `
		SELECT patient_id, name, dob, blood_group, current_medications, medication_history, pin
		FROM patients
		ORDER BY patient_id
	`
	var rows []patientRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load patients: %w", err)
	}

	patients = make([]*model.Patient, 0, len(rows))
	for _, row := range rows {
		patients = append(patients, row.toModel())
	}
	return patients, nil
}

// Save upserts every record and drops rows that are no longer in the set,
// all in one transaction.
func (r *patientRepository) Save(ctx context.Context, patients []*model.Patient) (err error) {
	start := time.Now()
	defer func() { r.metrics.ObserveStore("save", time.Since(start).Seconds(), err) }()

	upsert := `
		INSERT INTO patients (patient_id, name, dob, blood_group, current_medications, medication_history, pin)
		VALUES (:patient_id, :name, :dob, :blood_group, :current_medications, :medication_history, :pin)
		ON CONFLICT (patient_id) DO UPDATE SET
			name = EXCLUDED.name,
			dob = EXCLUDED.dob,
			blood_group = EXCLUDED.blood_group,
			current_medications = EXCLUDED.current_medications,
			medication_history = EXCLUDED.medication_history,
			pin = EXCLUDED.pin
	`

	ids := make([]string, 0, len(patients))
	err = r.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, p := range patients {
			if _, err := tx.NamedExecContext(ctx, upsert, rowFromModel(p)); err != nil {
				return fmt.Errorf("failed to upsert patient %s: %w", p.ID, err)
			}
			ids = append(ids, p.ID)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM patients WHERE NOT (patient_id = ANY($1))`, pq.Array(ids)); err != nil {
			return fmt.Errorf("failed to prune patients: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save patients: %w", err)
	}
	return nil
}
