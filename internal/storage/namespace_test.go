package storage

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/medvault-api/pkg/errors"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func names(t *testing.T, ns *Namespaces, id string) []string {
	t.Helper()
	artifacts, err := ns.ListArtifacts(id)
	require.NoError(t, err)
	out := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, a.Name)
	}
	return out
}

func TestEnsureNamespace_Idempotent(t *testing.T) {
	ns := NewNamespaces(t.TempDir(), 0)

	require.NoError(t, ns.EnsureNamespace("PAT001"))
	require.NoError(t, ns.EnsureNamespace("PAT001"))

	info, err := os.Stat(ns.Path("PAT001"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestListArtifacts_MissingNamespace(t *testing.T) {
	ns := NewNamespaces(t.TempDir(), 0)

	artifacts, err := ns.ListArtifacts("PAT404")
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestListArtifacts_ReportListedProfilePictureHidden(t *testing.T) {
	ns := NewNamespaces(t.TempDir(), 0)

	_, err := ns.StoreArtifact("PAT001", "report.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, ns.SetProfilePicture("PAT001", "png", bytes.NewReader(pngBytes(t))))

	assert.Equal(t, []string{"report.pdf"}, names(t, ns, "PAT001"))
}

func TestListArtifacts_HidesReservedNamesInAnyCase(t *testing.T) {
	ns := NewNamespaces(t.TempDir(), 0)
	dir := ns.Path("PAT002")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	for _, name := range []string{"PROFILE_PIC.PNG", "Profile_Pic.jpg", "profile_pic.JPEG", "zeta.csv", "alpha.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, ns.SetProfilePicture("PAT002", "jpeg", bytes.NewReader([]byte("x"))))

	assert.Equal(t, []string{"alpha.png", "zeta.csv"}, names(t, ns, "PAT002"))
}

func TestStoreArtifact_Overwrites(t *testing.T) {
	ns := NewNamespaces(t.TempDir(), 0)

	_, err := ns.StoreArtifact("PAT001", "labs.csv", strings.NewReader("a,b\n"))
	require.NoError(t, err)
	a, err := ns.StoreArtifact("PAT001", "labs.csv", strings.NewReader("a,b,c\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(6), a.Size)

	data, err := ns.ReadArtifact("PAT001", "labs.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b,c\n", string(data))
}

func TestStoreArtifact_RejectsUnsafeNames(t *testing.T) {
	ns := NewNamespaces(t.TempDir(), 0)

	for _, name := range []string{"", "..", "../escape.pdf", "a/b.pdf", `a\b.pdf`} {
		_, err := ns.StoreArtifact("PAT001", name, strings.NewReader("x"))
		assert.Error(t, err, name)
	}
	_, err := ns.StoreArtifact("../PAT001", "ok.pdf", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestStoreArtifact_RejectsProfilePictureNames(t *testing.T) {
	ns := NewNamespaces(t.TempDir(), 0)
	require.NoError(t, ns.SetProfilePicture("PAT001", "jpg", strings.NewReader("jpeg-bytes")))

	for _, name := range []string{"profile_pic.png", "PROFILE_PIC.JPG", "profile_pic.jpeg"} {
		_, err := ns.StoreArtifact("PAT001", name, strings.NewReader("not an image"))
		require.Error(t, err, name)
		assert.ErrorIs(t, err, ErrReservedName)
		assert.ErrorIs(t, err, apperrors.BadRequestErr)
	}

	entries, err := os.ReadDir(ns.Path("PAT001"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "profile_pic.jpg", entries[0].Name())

	name, data, err := ns.ReadProfilePicture("PAT001")
	require.NoError(t, err)
	assert.Equal(t, "profile_pic.jpg", name)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestStoreArtifact_SizeLimit(t *testing.T) {
	ns := NewNamespaces(t.TempDir(), 4)

	_, err := ns.StoreArtifact("PAT001", "big.pdf", strings.NewReader("12345"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFileTooLarge))

	_, statErr := os.Stat(filepath.Join(ns.Path("PAT001"), "big.pdf"))
	assert.True(t, os.IsNotExist(statErr))

	_, err = ns.StoreArtifact("PAT001", "ok.pdf", strings.NewReader("1234"))
	assert.NoError(t, err)
}

func TestReadArtifact_Missing(t *testing.T) {
	ns := NewNamespaces(t.TempDir(), 0)

	_, err := ns.ReadArtifact("PAT001", "nope.pdf")
	assert.ErrorIs(t, err, apperrors.FileNotFoundErr)
}

func TestSetProfilePicture_RemovesStaleExtensions(t *testing.T) {
	ns := NewNamespaces(t.TempDir(), 0)

	require.NoError(t, ns.SetProfilePicture("PAT001", "png", bytes.NewReader(pngBytes(t))))
	path, err := ns.ProfilePicture("PAT001")
	require.NoError(t, err)
	assert.Equal(t, "profile_pic.png", filepath.Base(path))

	require.NoError(t, ns.SetProfilePicture("PAT001", ".JPG", strings.NewReader("jpeg-bytes")))
	path, err = ns.ProfilePicture("PAT001")
	require.NoError(t, err)
	assert.Equal(t, "profile_pic.jpg", filepath.Base(path))

	_, err = os.Stat(filepath.Join(ns.Path("PAT001"), "profile_pic.png"))
	assert.True(t, os.IsNotExist(err))

	name, data, err := ns.ReadProfilePicture("PAT001")
	require.NoError(t, err)
	assert.Equal(t, "profile_pic.jpg", name)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestSetProfilePicture_RejectsType(t *testing.T) {
	ns := NewNamespaces(t.TempDir(), 0)

	err := ns.SetProfilePicture("PAT001", "gif", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidExtension)
}

func TestProfilePicture_PrefersPNG(t *testing.T) {
	ns := NewNamespaces(t.TempDir(), 0)
	dir := ns.Path("PAT003")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profile_pic.jpeg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profile_pic.png"), []byte("x"), 0o644))

	path, err := ns.ProfilePicture("PAT003")
	require.NoError(t, err)
	assert.Equal(t, "profile_pic.png", filepath.Base(path))
}

func TestProfilePicture_None(t *testing.T) {
	ns := NewNamespaces(t.TempDir(), 0)

	_, err := ns.ProfilePicture("PAT001")
	assert.ErrorIs(t, err, apperrors.FileNotFoundErr)
	assert.False(t, ns.HasProfilePicture("PAT001"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType("a.png", pngBytes(t)))
	assert.Equal(t, "application/pdf", ContentType("a.pdf", []byte("%PDF-1.4\n")))
	assert.True(t, IsImage(pngBytes(t)))
	assert.False(t, IsImage([]byte("hello")))
}
