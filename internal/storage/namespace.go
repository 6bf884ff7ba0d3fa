// Package storage keeps each patient's uploaded files in a directory of
// their own under a common uploads root.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jwalitptl/medvault-api/internal/model"
	apperrors "github.com/jwalitptl/medvault-api/pkg/errors"
)

var (
	ErrInvalidName      = errors.New("invalid file name")
	ErrFileTooLarge     = errors.New("file exceeds maximum allowed size")
	ErrInvalidExtension = errors.New("file type is not allowed")
	ErrNoProfilePicture = errors.New("no profile picture")
	ErrReservedName     = errors.New("file name is reserved")
)

const dirPerm = 0o755

// Namespaces maps patient IDs to directories below root.
type Namespaces struct {
	root    string
	maxSize int64
}

// NewNamespaces returns a manager rooted at root. A maxSize of zero or less
// disables the size check.
func NewNamespaces(root string, maxSize int64) *Namespaces {
	return &Namespaces{root: root, maxSize: maxSize}
}

func (n *Namespaces) Root() string {
	return n.root
}

// Path returns the namespace directory of id without touching the disk.
func (n *Namespaces) Path(id string) string {
	return filepath.Join(n.root, id)
}

// EnsureNamespace creates the namespace directory if it does not exist.
func (n *Namespaces) EnsureNamespace(id string) error {
	if err := validateName(id); err != nil {
		return apperrors.BadRequest("invalid patient id", err)
	}
	if err := os.MkdirAll(n.Path(id), dirPerm); err != nil {
		return fmt.Errorf("failed to create namespace %s: %w", id, err)
	}
	return nil
}

// ListArtifacts returns the uploaded reports of id sorted by name. The
// profile picture slot is never part of the listing.
func (n *Namespaces) ListArtifacts(id string) ([]model.Artifact, error) {
	if err := validateName(id); err != nil {
		return nil, apperrors.BadRequest("invalid patient id", err)
	}

	entries, err := os.ReadDir(n.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Artifact{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list namespace %s: %w", id, err)
	}

	artifacts := make([]model.Artifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || model.IsProfilePicture(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		artifacts = append(artifacts, model.Artifact{
			Name:       entry.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		})
	}

	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name < artifacts[j].Name })
	return artifacts, nil
}

// StoreArtifact writes r to filename inside the namespace of id, replacing
// any file of the same name.
func (n *Namespaces) StoreArtifact(id, filename string, r io.Reader) (*model.Artifact, error) {
	if err := validateName(filename); err != nil {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid file name %q", filename), err)
	}
	if model.IsProfilePicture(filename) {
		return nil, apperrors.BadRequest(fmt.Sprintf("file name %q is reserved for the profile picture", filename), ErrReservedName)
	}
	if err := n.EnsureNamespace(id); err != nil {
		return nil, err
	}

	path := filepath.Join(n.Path(id), filename)
	size, err := n.write(path, r)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", filename, err)
	}
	return &model.Artifact{Name: filename, Size: size, ModifiedAt: info.ModTime().UTC()}, nil
}

// ReadArtifact returns the content of filename in the namespace of id.
func (n *Namespaces) ReadArtifact(id, filename string) ([]byte, error) {
	if err := validateName(id); err != nil {
		return nil, apperrors.BadRequest("invalid patient id", err)
	}
	if err := validateName(filename); err != nil {
		return nil, apperrors.FileNotFound(filename, err)
	}

	data, err := os.ReadFile(filepath.Join(n.Path(id), filename))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.FileNotFound(filename, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return data, nil
}

// SetProfilePicture stores r as profile_pic.<ext> and removes pictures kept
// under the other extensions, so at most one picture exists.
func (n *Namespaces) SetProfilePicture(id, ext string, r io.Reader) error {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if !model.HasExtension("x."+ext, model.ProfilePictureExtensions) {
		return apperrors.BadRequest(fmt.Sprintf("unsupported profile picture type %q", ext), ErrInvalidExtension)
	}
	if err := n.EnsureNamespace(id); err != nil {
		return err
	}

	name := model.ProfilePictureBase + "." + ext
	if _, err := n.write(filepath.Join(n.Path(id), name), r); err != nil {
		return err
	}

	entries, err := os.ReadDir(n.Path(id))
	if err != nil {
		return fmt.Errorf("failed to list namespace %s: %w", id, err)
	}
	for _, entry := range entries {
		if entry.Name() == name || !model.IsProfilePicture(entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(n.Path(id), entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove stale profile picture: %w", err)
		}
	}
	return nil
}

// ProfilePicture returns the path of the stored profile picture, trying
// png, jpg and jpeg in that order.
func (n *Namespaces) ProfilePicture(id string) (string, error) {
	if err := validateName(id); err != nil {
		return "", apperrors.BadRequest("invalid patient id", err)
	}

	entries, err := os.ReadDir(n.Path(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to list namespace %s: %w", id, err)
	}

	byExt := make(map[string]string, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && model.IsProfilePicture(entry.Name()) {
			byExt[model.Extension(entry.Name())] = entry.Name()
		}
	}
	for _, ext := range model.ProfilePictureExtensions {
		if name, ok := byExt[ext]; ok {
			return filepath.Join(n.Path(id), name), nil
		}
	}
	return "", apperrors.FileNotFound(model.ProfilePictureBase, ErrNoProfilePicture)
}

// HasProfilePicture reports whether id has a stored profile picture.
func (n *Namespaces) HasProfilePicture(id string) bool {
	_, err := n.ProfilePicture(id)
	return err == nil
}

// ReadProfilePicture returns the file name and content of the profile picture.
func (n *Namespaces) ReadProfilePicture(id string) (string, []byte, error) {
	path, err := n.ProfilePicture(id)
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, apperrors.FileNotFound(filepath.Base(path), err)
	}
	return filepath.Base(path), data, nil
}

func (n *Namespaces) write(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}

	src := r
	if n.maxSize > 0 {
		src = io.LimitReader(r, n.maxSize+1)
	}
	size, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && n.maxSize > 0 && size > n.maxSize {
		err = apperrors.BadRequest("file exceeds maximum allowed size", ErrFileTooLarge)
	}
	if err != nil {
		os.Remove(path)
		if _, ok := apperrors.As(err); ok {
			return 0, err
		}
		return 0, fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return size, nil
}

// ContentType sniffs data, falling back to the file extension when the
// content is not recognised.
func ContentType(name string, data []byte) string {
	mt := mimetype.Detect(data)
	if mt.Is("application/octet-stream") || mt.Is("text/plain") {
		switch model.Extension(name) {
		case "csv":
			return "text/csv; charset=utf-8"
		case "pdf":
			return "application/pdf"
		}
	}
	return mt.String()
}

// IsImage reports whether data looks like a png or jpeg image.
func IsImage(data []byte) bool {
	mt := mimetype.Detect(data)
	return mt.Is("image/png") || mt.Is("image/jpeg")
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") || strings.ContainsRune(name, 0) {
		return ErrInvalidName
	}
	return nil
}
