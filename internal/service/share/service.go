package share

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/session"
	apperrors "github.com/jwalitptl/medvault-api/pkg/errors"
	"github.com/jwalitptl/medvault-api/pkg/logger"
	"github.com/jwalitptl/medvault-api/pkg/mailer"
)

const defaultQRSize = 256

// PatientReader is the lookup the share service needs.
type PatientReader interface {
	Get(ctx context.Context, id string) (*model.Patient, error)
}

type Config struct {
	BaseURL string
	QRSize  int
}

type ShareService interface {
	Link(ctx context.Context, patientID string) (*model.ShareLink, error)
	QRCode(ctx context.Context, patientID string) ([]byte, error)
	Email(ctx context.Context, patientID, to string) error
}

type Service struct {
	patients PatientReader
	mailer   mailer.Sender
	baseURL  string
	qrSize   int
	log      *logger.Logger
}

func NewService(patients PatientReader, sender mailer.Sender, cfg Config, log *logger.Logger) *Service {
	if cfg.QRSize <= 0 {
		cfg.QRSize = defaultQRSize
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		patients: patients,
		mailer:   sender,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		qrSize:   cfg.QRSize,
		log:      log,
	}
}

// Link builds the view-only link of a patient. The token carries the PIN,
// so anyone holding the link can read the record.
func (s *Service) Link(ctx context.Context, patientID string) (*model.ShareLink, error) {
	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}

	token := session.LinkToken(patient.ID, patient.PIN)
	return &model.ShareLink{
		Token: token,
		URL:   s.baseURL + "/?token=" + url.QueryEscape(token),
	}, nil
}

// QRCode renders the share link as a PNG.
func (s *Service) QRCode(ctx context.Context, patientID string) ([]byte, error) {
	link, err := s.Link(ctx, patientID)
	if err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(link.URL, qrcode.Medium, s.qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code: %w", err)
	}
	return png, nil
}

// Email sends the share link, with its QR code attached, to the given address.
func (s *Service) Email(ctx context.Context, patientID, to string) error {
	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return err
	}
	link, err := s.Link(ctx, patientID)
	if err != nil {
		return err
	}
	png, err := qrcode.Encode(link.URL, qrcode.Medium, s.qrSize)
	if err != nil {
		return fmt.Errorf("failed to render qr code: %w", err)
	}

	msg := &mailer.Message{
		To:      to,
		Subject: fmt.Sprintf("MedVault health record of %s", patient.Name),
		Body: fmt.Sprintf(
			"%s has shared a read-only view of their MedVault health record with you.\n\nOpen it here:\n%s\n\nThe QR code attached opens the same link.\n",
			patient.Name, link.URL,
		),
		Attachment: &mailer.Attachment{
			Name:        "medvault-" + patient.ID + ".png",
			ContentType: "image/png",
			Data:        png,
		},
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		if errors.Is(err, mailer.ErrDisabled) {
			return apperrors.Unavailable("e-mail delivery is not configured", err)
		}
		s.log.WithContext(ctx).Error(err, "failed to send share link", "patient_id", patientID)
		return fmt.Errorf("failed to send share link: %w", err)
	}

	s.log.WithContext(ctx).Info("share link sent", "patient_id", patientID)
	return nil
}
