package patient

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/repository"
	"github.com/jwalitptl/medvault-api/internal/storage"
	apperrors "github.com/jwalitptl/medvault-api/pkg/errors"
	"github.com/jwalitptl/medvault-api/pkg/logger"
	"github.com/jwalitptl/medvault-api/pkg/metrics"
)

// FileStore is the part of the namespace manager the service needs.
type FileStore interface {
	EnsureNamespace(id string) error
	ListArtifacts(id string) ([]model.Artifact, error)
	StoreArtifact(id, filename string, r io.Reader) (*model.Artifact, error)
	ReadArtifact(id, filename string) ([]byte, error)
	SetProfilePicture(id, ext string, r io.Reader) error
	HasProfilePicture(id string) bool
	ReadProfilePicture(id string) (string, []byte, error)
}

// File is an uploaded file as received from the client.
type File struct {
	Name    string
	Content io.Reader
}

// Uploads are the optional files sent along with a new profile.
type Uploads struct {
	ProfilePicture *File
	Reports        []File
}

type PatientService interface {
	Create(ctx context.Context, req *model.CreatePatientRequest, uploads *Uploads) (*model.CreatedProfile, error)
	Get(ctx context.Context, id string) (*model.Patient, error)
	Update(ctx context.Context, id string, req *model.UpdatePatientRequest) (*model.Patient, error)
	Dashboard(ctx context.Context, id, mode string) (*model.Dashboard, error)
	NextID(ctx context.Context) (string, error)
	UploadReport(ctx context.Context, id string, file File) (*model.Artifact, error)
	ListReports(ctx context.Context, id string) ([]model.Artifact, error)
	ReadReport(ctx context.Context, id, filename string) ([]byte, error)
	SetProfilePicture(ctx context.Context, id string, file File) error
	ReadProfilePicture(ctx context.Context, id string) (string, []byte, error)
}

type Service struct {
	repo    repository.PatientRepository
	files   FileStore
	log     *logger.Logger
	metrics *metrics.Metrics

	// mu serializes read-modify-write cycles on the record store so two
	// creates in this process cannot allocate the same ID.
	mu     sync.Mutex
	newPIN func() (string, error)
}

func NewService(repo repository.PatientRepository, files FileStore, log *logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:    repo,
		files:   files,
		log:     log,
		metrics: m,
		newPIN:  GeneratePIN,
	}
}

// GeneratePIN returns a random PIN in 1000..9999.
func GeneratePIN() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("failed to generate pin: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}

func (s *Service) Create(ctx context.Context, req *model.CreatePatientRequest, uploads *Uploads) (*model.CreatedProfile, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}
	if err := validateUploads(uploads); err != nil {
		return nil, err
	}

	current := model.NewMedicationListBuilder(model.NormalizeList(req.CurrentMedications)...)
	history := model.NewMedicationListBuilder(model.NormalizeList(req.MedicationHistory)...)

	s.mu.Lock()
	patient, err := s.insert(ctx, func(id, pin string) *model.Patient {
		return &model.Patient{
			ID:                 id,
			Name:               strings.TrimSpace(req.Name),
			DateOfBirth:        req.DateOfBirth,
			BloodGroup:         model.BloodGroup(req.BloodGroup),
			CurrentMedications: current.Items(),
			MedicationHistory:  history.Items(),
			PIN:                pin,
		}
	})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	log := s.log.WithContext(ctx).WithFields(map[string]interface{}{"patient_id": patient.ID})
	if err := s.files.EnsureNamespace(patient.ID); err != nil {
		log.Error(err, "failed to create patient namespace")
		return nil, fmt.Errorf("failed to create namespace: %w", err)
	}

	created := &model.CreatedProfile{
		PatientID: patient.ID,
		PIN:       patient.PIN,
		Patient:   patient,
	}

	// The record is already saved, so a failed upload is logged and skipped
	// rather than hiding the new credentials from the caller.
	if uploads != nil {
		if pic := uploads.ProfilePicture; pic != nil {
			if err := s.files.SetProfilePicture(patient.ID, model.Extension(pic.Name), pic.Content); err != nil {
				log.Error(err, "failed to store profile picture", "file", pic.Name)
			} else {
				s.countUpload("profile_picture")
				created.Uploaded = append(created.Uploaded, pic.Name)
			}
		}
		for _, report := range uploads.Reports {
			if _, err := s.files.StoreArtifact(patient.ID, report.Name, report.Content); err != nil {
				log.Error(err, "failed to store report", "file", report.Name)
				continue
			}
			s.countUpload("report")
			created.Uploaded = append(created.Uploaded, report.Name)
		}
	}

	if s.metrics != nil {
		s.metrics.ProfilesCreated.Inc()
	}
	log.Info("patient profile created")

	return created, nil
}

func (s *Service) insert(ctx context.Context, build func(id, pin string) *model.Patient) (*model.Patient, error) {
	existing, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load patients: %w", err)
	}

	id, err := NextID(existing)
	if err != nil {
		return nil, err
	}
	pin, err := s.newPIN()
	if err != nil {
		return nil, err
	}

	patient := build(id, pin)
	if err := s.repo.Save(ctx, append(existing, patient)); err != nil {
		return nil, fmt.Errorf("failed to save patient: %w", err)
	}
	return patient.Clone(), nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Patient, error) {
	patient, err := repository.FindByID(ctx, s.repo, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	if patient == nil {
		return nil, apperrors.NotFound("patient", nil)
	}
	return patient, nil
}

func (s *Service) Update(ctx context.Context, id string, req *model.UpdatePatientRequest) (*model.Patient, error) {
	if err := validateUpdate(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load patients: %w", err)
	}

	var patient *model.Patient
	for _, p := range existing {
		if p.ID == id {
			patient = p
			break
		}
	}
	if patient == nil {
		return nil, apperrors.NotFound("patient", nil)
	}

	if req.Name != nil {
		patient.Name = strings.TrimSpace(*req.Name)
	}
	if req.DateOfBirth != nil {
		patient.DateOfBirth = *req.DateOfBirth
	}
	if req.BloodGroup != nil {
		patient.BloodGroup = model.BloodGroup(*req.BloodGroup)
	}
	if req.CurrentMedications != nil {
		patient.CurrentMedications = model.NewMedicationListBuilder(model.NormalizeList(*req.CurrentMedications)...).Items()
	}
	if req.MedicationHistory != nil {
		patient.MedicationHistory = model.NewMedicationListBuilder(model.NormalizeList(*req.MedicationHistory)...).Items()
	}

	if err := s.repo.Save(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to save patient: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ProfilesUpdated.Inc()
	}
	s.log.WithContext(ctx).Info("patient profile updated", "patient_id", id)

	return patient.Clone(), nil
}

func (s *Service) Dashboard(ctx context.Context, id, mode string) (*model.Dashboard, error) {
	patient, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	reports, err := s.files.ListArtifacts(id)
	if err != nil {
		return nil, err
	}
	return &model.Dashboard{
		Patient:           patient,
		Mode:              mode,
		Reports:           reports,
		HasProfilePicture: s.files.HasProfilePicture(id),
	}, nil
}

// NextID reports the ID the next created profile would get.
func (s *Service) NextID(ctx context.Context) (string, error) {
	existing, err := s.repo.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load patients: %w", err)
	}
	return NextID(existing)
}

func (s *Service) UploadReport(ctx context.Context, id string, file File) (*model.Artifact, error) {
	if err := validateReportName(file.Name); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	artifact, err := s.files.StoreArtifact(id, file.Name, file.Content)
	if err != nil {
		return nil, err
	}
	s.countUpload("report")
	s.log.WithContext(ctx).Info("report uploaded", "patient_id", id, "file", file.Name)
	return artifact, nil
}

func (s *Service) ListReports(ctx context.Context, id string) ([]model.Artifact, error) {
	return s.files.ListArtifacts(id)
}

func (s *Service) ReadReport(ctx context.Context, id, filename string) ([]byte, error) {
	return s.files.ReadArtifact(id, filename)
}

func (s *Service) SetProfilePicture(ctx context.Context, id string, file File) error {
	if !model.HasExtension(file.Name, model.ProfilePictureExtensions) {
		return apperrors.BadRequest(fmt.Sprintf("unsupported profile picture type %q", file.Name), nil)
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	if err := s.files.SetProfilePicture(id, model.Extension(file.Name), file.Content); err != nil {
		return err
	}
	s.countUpload("profile_picture")
	return nil
}

func (s *Service) ReadProfilePicture(ctx context.Context, id string) (string, []byte, error) {
	return s.files.ReadProfilePicture(id)
}

func (s *Service) countUpload(kind string) {
	if s.metrics != nil {
		s.metrics.ArtifactsUploaded.WithLabelValues(kind).Inc()
	}
}

func validateCreate(req *model.CreatePatientRequest) error {
	if req == nil {
		return apperrors.BadRequest("missing profile", nil)
	}
	if strings.TrimSpace(req.Name) == "" {
		return apperrors.BadRequest("name is required", nil)
	}
	if _, err := time.Parse(model.DateLayout, req.DateOfBirth); err != nil {
		return apperrors.BadRequest("dob must be a YYYY-MM-DD date", err)
	}
	if !model.BloodGroup(req.BloodGroup).Valid() {
		return apperrors.BadRequest(fmt.Sprintf("invalid blood group %q", req.BloodGroup), nil)
	}
	return nil
}

func validateUpdate(req *model.UpdatePatientRequest) error {
	if req == nil {
		return apperrors.BadRequest("missing profile", nil)
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return apperrors.BadRequest("name must not be empty", nil)
	}
	if req.DateOfBirth != nil {
		if _, err := time.Parse(model.DateLayout, *req.DateOfBirth); err != nil {
			return apperrors.BadRequest("dob must be a YYYY-MM-DD date", err)
		}
	}
	if req.BloodGroup != nil && !model.BloodGroup(*req.BloodGroup).Valid() {
		return apperrors.BadRequest(fmt.Sprintf("invalid blood group %q", *req.BloodGroup), nil)
	}
	return nil
}

func validateUploads(uploads *Uploads) error {
	if uploads == nil {
		return nil
	}
	if pic := uploads.ProfilePicture; pic != nil && !model.HasExtension(pic.Name, model.ProfilePictureExtensions) {
		return apperrors.BadRequest(fmt.Sprintf("unsupported profile picture type %q", pic.Name), nil)
	}
	for _, report := range uploads.Reports {
		if err := validateReportName(report.Name); err != nil {
			return err
		}
	}
	return nil
}

// validateReportName keeps reports out of the profile picture slot, which is
// only written through SetProfilePicture.
func validateReportName(name string) error {
	if model.IsProfilePicture(name) {
		return apperrors.BadRequest(fmt.Sprintf("file name %q is reserved for the profile picture", name), storage.ErrReservedName)
	}
	if !model.HasExtension(name, model.ReportExtensions) {
		return apperrors.BadRequest(fmt.Sprintf("unsupported report type %q", name), nil)
	}
	return nil
}
