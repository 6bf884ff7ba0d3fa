package patient

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/repository"
	"github.com/jwalitptl/medvault-api/internal/repository/csvstore"
	"github.com/jwalitptl/medvault-api/internal/storage"
	apperrors "github.com/jwalitptl/medvault-api/pkg/errors"
	"github.com/jwalitptl/medvault-api/pkg/metrics"
)

type fixture struct {
	svc   *Service
	repo  repository.PatientRepository
	files *storage.Namespaces
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	repo, err := csvstore.NewPatientRepository(filepath.Join(dir, "patients.csv"), nil)
	require.NoError(t, err)
	files := storage.NewNamespaces(filepath.Join(dir, "uploads"), 1<<20)

	return &fixture{
		svc:   NewService(repo, files, nil, metrics.New("test", nil)),
		repo:  repo,
		files: files,
	}
}

func aliceRequest() *model.CreatePatientRequest {
	return &model.CreatePatientRequest{
		Name:        "Alice",
		DateOfBirth: "1990-01-01",
		BloodGroup:  "O+",
	}
}

func TestGeneratePIN(t *testing.T) {
	re := regexp.MustCompile(`^[1-9]\d{3}$`)
	for i := 0; i < 200; i++ {
		pin, err := GeneratePIN()
		require.NoError(t, err)
		assert.Regexp(t, re, pin)
	}
}

func TestCreate_Alice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, aliceRequest(), nil)
	require.NoError(t, err)

	assert.Equal(t, "PAT001", created.PatientID)
	assert.Regexp(t, `^\d{4}$`, created.PIN)
	assert.Equal(t, "Alice", created.Patient.Name)

	stored, err := repository.FindByID(ctx, f.repo, "PAT001")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, created.PIN, stored.PIN)
	assert.Equal(t, model.BloodGroupOPos, stored.BloodGroup)

	assert.DirExists(t, f.files.Path("PAT001"))
}

func TestCreate_SequentialIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, aliceRequest(), nil)
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, &model.CreatePatientRequest{Name: "Bob", DateOfBirth: "1985-06-30", BloodGroup: "A-"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "PAT001", first.PatientID)
	assert.Equal(t, "PAT002", second.PatientID)

	next, err := f.svc.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "PAT003", next)
}

func TestCreate_ConcurrentCreatesGetDistinctIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 10
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := f.svc.Create(ctx, aliceRequest(), nil)
			if assert.NoError(t, err) {
				ids <- created.PatientID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestCreate_MedicationLists(t *testing.T) {
	f := newFixture(t)
	req := aliceRequest()
	req.CurrentMedications = []string{"Dolo", model.DrugPlaceholder, "Dolo", " Crocin ", ""}
	req.MedicationHistory = []string{"Amoxicillin 2019\n\nMetformin"}

	created, err := f.svc.Create(context.Background(), req, nil)
	require.NoError(t, err)

	got, err := f.svc.Get(context.Background(), created.PatientID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dolo", "Crocin"}, got.CurrentMedications)
	assert.Equal(t, []string{"Amoxicillin 2019", "Metformin"}, got.MedicationHistory)
}

func TestCreate_WithUploads(t *testing.T) {
	f := newFixture(t)

	created, err := f.svc.Create(context.Background(), aliceRequest(), &Uploads{
		ProfilePicture: &File{Name: "me.JPG", Content: strings.NewReader("jpeg")},
		Reports: []File{
			{Name: "report.pdf", Content: strings.NewReader("%PDF-1.4")},
			{Name: "labs.csv", Content: strings.NewReader("a,b\n")},
		},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"me.JPG", "report.pdf", "labs.csv"}, created.Uploaded)

	dash, err := f.svc.Dashboard(context.Background(), created.PatientID, "authenticated")
	require.NoError(t, err)
	assert.True(t, dash.HasProfilePicture)
	require.Len(t, dash.Reports, 2)
	assert.Equal(t, "labs.csv", dash.Reports[0].Name)
	assert.Equal(t, "report.pdf", dash.Reports[1].Name)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     *model.CreatePatientRequest
		uploads *Uploads
	}{
		{name: "missing name", req: &model.CreatePatientRequest{DateOfBirth: "1990-01-01", BloodGroup: "O+"}},
		{name: "bad dob", req: &model.CreatePatientRequest{Name: "A", DateOfBirth: "01/01/1990", BloodGroup: "O+"}},
		{name: "bad blood group", req: &model.CreatePatientRequest{Name: "A", DateOfBirth: "1990-01-01", BloodGroup: "C+"}},
		{name: "bad report type", req: aliceRequest(), uploads: &Uploads{Reports: []File{{Name: "x.exe", Content: strings.NewReader("")}}}},
		{name: "report in picture slot", req: aliceRequest(), uploads: &Uploads{Reports: []File{{Name: "profile_pic.png", Content: strings.NewReader("x")}}}},
		{name: "bad picture type", req: aliceRequest(), uploads: &Uploads{ProfilePicture: &File{Name: "me.gif", Content: strings.NewReader("")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.req, tt.uploads)
			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
		})
	}

	patients, err := f.repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, patients)
}

func TestCreate_CorruptStoreHalts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.Save(ctx, []*model.Patient{{ID: "legacy-7"}}))

	_, err := f.svc.Create(ctx, aliceRequest(), nil)
	assert.ErrorIs(t, err, apperrors.CorruptIdentityErr)

	patients, err := f.repo.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, patients, 1)
}

func TestCreate_PINFailure(t *testing.T) {
	f := newFixture(t)
	f.svc.newPIN = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, err := f.svc.Create(context.Background(), aliceRequest(), nil)
	assert.Error(t, err)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, aliceRequest(), nil)
	require.NoError(t, err)

	name := "Alice Smith"
	meds := []string{"Disprin"}
	updated, err := f.svc.Update(ctx, created.PatientID, &model.UpdatePatientRequest{
		Name:               &name,
		CurrentMedications: &meds,
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", updated.Name)
	assert.Equal(t, "1990-01-01", updated.DateOfBirth)
	assert.Equal(t, []string{"Disprin"}, updated.CurrentMedications)
	assert.Equal(t, created.PIN, updated.PIN)

	got, err := f.svc.Get(ctx, created.PatientID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestUpdate_MedicationListsDeduplicated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, aliceRequest(), nil)
	require.NoError(t, err)

	current := []string{"Dolo", " Dolo ", model.DrugPlaceholder, "Crocin", "Dolo"}
	history := []string{""}
	updated, err := f.svc.Update(ctx, created.PatientID, &model.UpdatePatientRequest{
		CurrentMedications: &current,
		MedicationHistory:  &history,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dolo", "Crocin"}, updated.CurrentMedications)
	assert.Empty(t, updated.MedicationHistory)
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(t)
	name := "x"

	_, err := f.svc.Update(context.Background(), "PAT404", &model.UpdatePatientRequest{Name: &name})
	assert.ErrorIs(t, err, apperrors.NotFoundErr)
}

func TestUploadReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, aliceRequest(), nil)
	require.NoError(t, err)

	_, err = f.svc.UploadReport(ctx, created.PatientID, File{Name: "report.pdf", Content: strings.NewReader("%PDF")})
	require.NoError(t, err)
	_, err = f.svc.UploadReport(ctx, created.PatientID, File{Name: "notes.txt", Content: strings.NewReader("hi")})
	assert.Error(t, err)
	_, err = f.svc.UploadReport(ctx, "PAT404", File{Name: "report.pdf", Content: strings.NewReader("%PDF")})
	assert.ErrorIs(t, err, apperrors.NotFoundErr)

	reports, err := f.svc.ListReports(ctx, created.PatientID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "report.pdf", reports[0].Name)

	data, err := f.svc.ReadReport(ctx, created.PatientID, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))
}

func TestUploadReport_ProfilePictureNameRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, aliceRequest(), nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.SetProfilePicture(ctx, created.PatientID, File{Name: "me.jpg", Content: strings.NewReader("jpeg")}))

	_, err = f.svc.UploadReport(ctx, created.PatientID, File{Name: "profile_pic.png", Content: strings.NewReader("not an image")})
	assert.ErrorIs(t, err, apperrors.BadRequestErr)
	assert.ErrorIs(t, err, storage.ErrReservedName)

	name, data, err := f.svc.ReadProfilePicture(ctx, created.PatientID)
	require.NoError(t, err)
	assert.Equal(t, "profile_pic.jpg", name)
	assert.Equal(t, "jpeg", string(data))
}

func TestSetProfilePicture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.Create(ctx, aliceRequest(), nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.SetProfilePicture(ctx, created.PatientID, File{Name: "a.png", Content: strings.NewReader("png")}))
	require.NoError(t, f.svc.SetProfilePicture(ctx, created.PatientID, File{Name: "b.jpeg", Content: strings.NewReader("jpeg")}))

	name, data, err := f.svc.ReadProfilePicture(ctx, created.PatientID)
	require.NoError(t, err)
	assert.Equal(t, "profile_pic.jpeg", name)
	assert.Equal(t, "jpeg", string(data))

	reports, err := f.svc.ListReports(ctx, created.PatientID)
	require.NoError(t, err)
	assert.Empty(t, reports)
}
