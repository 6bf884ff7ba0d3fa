package model

import (
	"strings"
	"time"
)

// ProfilePictureBase is the reserved file name stem of the profile picture slot.
const ProfilePictureBase = "profile_pic"

// ProfilePictureExtensions are tried in this order when looking the picture up.
var ProfilePictureExtensions = []string{"png", "jpg", "jpeg"}

// ReportExtensions are the accepted report upload types.
var ReportExtensions = []string{"pdf", "png", "jpg", "csv"}

// Artifact is an uploaded file inside a patient's namespace.
type Artifact struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// IsProfilePicture reports whether name is one of the reserved profile
// picture file names, ignoring case.
func IsProfilePicture(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range ProfilePictureExtensions {
		if lower == ProfilePictureBase+"."+ext {
			return true
		}
	}
	return false
}

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// HasExtension reports whether name ends in one of exts.
func HasExtension(name string, exts []string) bool {
	ext := Extension(name)
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
