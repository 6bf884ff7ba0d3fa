package repository

import (
	"context"

	"github.com/jwalitptl/medvault-api/internal/model"
)

type (
	// PatientRepository is the record store. Load returns every record and
	// Save replaces the stored set with the given one.
	PatientRepository interface {
		Load(ctx context.Context) ([]*model.Patient, error)
		Save(ctx context.Context, patients []*model.Patient) error
	}

	// DrugMapRepository holds local drug name to search name mappings.
	DrugMapRepository interface {
		List(ctx context.Context) ([]model.DrugMapping, error)
		Put(ctx context.Context, mapping model.DrugMapping) error
	}

	// Pinger is implemented by stores that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// FindByID re-reads the store and returns a copy of the matching record, or nil.
func FindByID(ctx context.Context, repo PatientRepository, id string) (*model.Patient, error) {
	patients, err := repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range patients {
		if p.ID == id {
			return p.Clone(), nil
		}
	}
	return nil, nil
}
