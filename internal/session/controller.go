package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwalitptl/medvault-api/internal/model"
	authsvc "github.com/jwalitptl/medvault-api/internal/service/auth"
	"github.com/jwalitptl/medvault-api/pkg/auth"
	apperrors "github.com/jwalitptl/medvault-api/pkg/errors"
	"github.com/jwalitptl/medvault-api/pkg/logger"
	"github.com/jwalitptl/medvault-api/pkg/metrics"
)

var (
	errRevoked     = errors.New("session has ended")
	errUnknownMode = errors.New("unknown session mode")
)

// Issued is a newly started session and its signed token.
type Issued struct {
	Token   string
	State   State
	Patient *model.Patient
}

// Controller runs the session state machine. Every transition re-checks
// credentials against the store; nothing about a patient is cached here.
type Controller struct {
	verifier authsvc.Verifier
	tokens   auth.JWTService
	revoker  Revoker
	log      *logger.Logger
	metrics  *metrics.Metrics
}

func NewController(verifier authsvc.Verifier, tokens auth.JWTService, revoker Revoker, log *logger.Logger, m *metrics.Metrics) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	return &Controller{
		verifier: verifier,
		tokens:   tokens,
		revoker:  revoker,
		log:      log,
		metrics:  m,
	}
}

// Login moves an unauthenticated caller to Authenticated(id).
func (c *Controller) Login(ctx context.Context, current State, patientID, pin string) (*Issued, error) {
	to, err := Next(current.Mode, EventLogin)
	if err != nil {
		return nil, err
	}

	patient, err := c.verifier.Authenticate(ctx, patientID, pin)
	c.countLogin(ModeAuthenticated, err)
	if err != nil {
		return nil, err
	}
	return c.issue(ctx, to, patient)
}

// PresentLink moves an unauthenticated caller to ViewOnly(id) using a
// <patient_id>_<pin> link token.
func (c *Controller) PresentLink(ctx context.Context, current State, token string) (*Issued, error) {
	to, err := Next(current.Mode, EventPresentLink)
	if err != nil {
		return nil, err
	}

	id, pin, err := ParseLinkToken(token)
	if err != nil {
		c.countLogin(ModeViewOnly, err)
		return nil, err
	}

	patient, err := c.verifier.Authenticate(ctx, id, pin)
	c.countLogin(ModeViewOnly, err)
	if err != nil {
		return nil, err
	}
	return c.issue(ctx, to, patient)
}

// Logout ends an authenticated session.
func (c *Controller) Logout(ctx context.Context, current State) (State, error) {
	return c.end(ctx, current, EventLogout)
}

// Back leaves a view-only session.
func (c *Controller) Back(ctx context.Context, current State) (State, error) {
	return c.end(ctx, current, EventBack)
}

// Resolve turns a bearer token into a session state. An empty token is
// the unauthenticated state, not an error.
func (c *Controller) Resolve(ctx context.Context, token string) (State, error) {
	if token == "" {
		return Unauthenticated(), nil
	}

	claims, err := c.tokens.ValidateToken(token)
	if err != nil {
		return Unauthenticated(), apperrors.Unauthorized(err)
	}

	mode := Mode(claims.Mode)
	if mode != ModeAuthenticated && mode != ModeViewOnly {
		return Unauthenticated(), apperrors.Unauthorized(errUnknownMode)
	}

	revoked, err := c.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Unauthenticated(), fmt.Errorf("failed to resolve session: %w", err)
	}
	if revoked {
		return Unauthenticated(), apperrors.Unauthorized(errRevoked)
	}

	state := State{Mode: mode, PatientID: claims.Subject, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		state.ExpiresAt = claims.ExpiresAt.Time
	}
	return state, nil
}

func (c *Controller) issue(ctx context.Context, mode Mode, patient *model.Patient) (*Issued, error) {
	token, claims, err := c.tokens.GenerateToken(patient.ID, string(mode))
	if err != nil {
		return nil, err
	}

	c.log.WithContext(ctx).Info("session started", "patient_id", patient.ID, "mode", string(mode))

	return &Issued{
		Token: token,
		State: State{
			Mode:      mode,
			PatientID: patient.ID,
			TokenID:   claims.ID,
			ExpiresAt: claims.ExpiresAt.Time,
		},
		Patient: patient,
	}, nil
}

func (c *Controller) end(ctx context.Context, current State, event Event) (State, error) {
	to, err := Next(current.Mode, event)
	if err != nil {
		return current, err
	}

	if current.TokenID != "" {
		if err := c.revoker.Revoke(ctx, current.TokenID, current.ExpiresAt); err != nil {
			return current, fmt.Errorf("failed to end session: %w", err)
		}
	}
	if c.metrics != nil {
		c.metrics.SessionsRevoked.Inc()
	}
	c.log.WithContext(ctx).Info("session ended", "patient_id", current.PatientID, "event", string(event))

	return State{Mode: to}, nil
}

func (c *Controller) countLogin(mode Mode, err error) {
	if c.metrics == nil {
		return
	}
	result := "success"
	switch {
	case errors.Is(err, apperrors.InvalidLinkErr):
		result = "invalid_link"
	case errors.Is(err, apperrors.InvalidCredentialsErr):
		result = "invalid_credentials"
	case err != nil:
		result = "error"
	}
	c.metrics.LoginAttempts.WithLabelValues(string(mode), result).Inc()
}
