package auth

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/repository"
	apperrors "github.com/jwalitptl/medvault-api/pkg/errors"
)

// Verifier checks a patient ID and PIN pair against the record store.
type Verifier interface {
	Authenticate(ctx context.Context, patientID, pin string) (*model.Patient, error)
}

type Service struct {
	repo repository.PatientRepository
}

func NewService(repo repository.PatientRepository) *Service {
	return &Service{repo: repo}
}

// Authenticate re-reads the store and returns the first record whose ID and
// PIN both match. The pair is compared as one value in constant time, so a
// correct ID with a wrong PIN fails the same way as an unknown ID.
func (s *Service) Authenticate(ctx context.Context, patientID, pin string) (*model.Patient, error) {
	patients, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load patients: %w", err)
	}

	presented := credential(patientID, pin)
	for _, p := range patients {
		if subtle.ConstantTimeCompare(credential(p.ID, p.PIN), presented) == 1 {
			return p.Clone(), nil
		}
	}
	return nil, apperrors.InvalidCredentials()
}

// credential joins the pair with a separator that cannot occur in either
// field, so ("PAT0", "14321") and ("PAT01", "4321") never collide.
func credential(id, pin string) []byte {
	return []byte(id + "\x00" + pin)
}
