package model

import (
	"strings"
	"time"
)

// DateLayout is the on-disk and wire format for dates of birth.
const DateLayout = "2006-01-02"

type BloodGroup string

const (
	BloodGroupAPos  BloodGroup = "A+"
	BloodGroupANeg  BloodGroup = "A-"
	BloodGroupBPos  BloodGroup = "B+"
	BloodGroupBNeg  BloodGroup = "B-"
	BloodGroupABPos BloodGroup = "AB+"
	BloodGroupABNeg BloodGroup = "AB-"
	BloodGroupOPos  BloodGroup = "O+"
	BloodGroupONeg  BloodGroup = "O-"
)

// BloodGroups lists the accepted values in display order.
var BloodGroups = []BloodGroup{
	BloodGroupAPos, BloodGroupANeg,
	BloodGroupBPos, BloodGroupBNeg,
	BloodGroupABPos, BloodGroupABNeg,
	BloodGroupOPos, BloodGroupONeg,
}

func (b BloodGroup) Valid() bool {
	for _, g := range BloodGroups {
		if b == g {
			return true
		}
	}
	return false
}

// Patient is one row of the record store. PIN is an opaque credential and is
// never serialized to clients.
type Patient struct {
	ID                 string     `db:"patient_id" json:"patient_id"`
	Name               string     `db:"name" json:"name"`
	DateOfBirth        string     `db:"dob" json:"dob"`
	BloodGroup         BloodGroup `db:"blood_group" json:"blood_group"`
	CurrentMedications []string   `db:"-" json:"current_medications"`
	MedicationHistory  []string   `db:"-" json:"medication_history"`
	PIN                string     `db:"pin" json:"-"`
}

// Clone returns a deep copy so callers can hand out snapshots.
func (p *Patient) Clone() *Patient {
	if p == nil {
		return nil
	}
	out := *p
	out.CurrentMedications = cloneList(p.CurrentMedications)
	out.MedicationHistory = cloneList(p.MedicationHistory)
	return &out
}

// DOB parses DateOfBirth. Stored values are passed through unvalidated, so
// this can fail for rows written by hand.
func (p *Patient) DOB() (time.Time, error) {
	return time.Parse(DateLayout, p.DateOfBirth)
}

// JoinList encodes a medication list the way the tabular store keeps it.
func JoinList(items []string) string {
	return strings.Join(items, "\n")
}

// SplitList decodes a newline-joined field, dropping blank lines.
func SplitList(field string) []string {
	var out []string
	for _, line := range strings.Split(field, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// NormalizeList trims entries and drops empties. An empty result is nil so
// that a record survives a store round trip unchanged.
func NormalizeList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, line := range SplitList(item) {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}

func cloneList(items []string) []string {
	if items == nil {
		return nil
	}
	out := make([]string, len(items))
	copy(out, items)
	return out
}

type CreatePatientRequest struct {
	Name               string   `json:"name" form:"name" binding:"required"`
	DateOfBirth        string   `json:"dob" form:"dob" binding:"required,datetime=2006-01-02"`
	BloodGroup         string   `json:"blood_group" form:"blood_group" binding:"required,bloodgroup"`
	CurrentMedications []string `json:"current_medications" form:"current_medications"`
	MedicationHistory  []string `json:"medication_history" form:"medication_history"`
}

type UpdatePatientRequest struct {
	Name               *string   `json:"name" binding:"omitempty,min=1"`
	DateOfBirth        *string   `json:"dob" binding:"omitempty,datetime=2006-01-02"`
	BloodGroup         *string   `json:"blood_group" binding:"omitempty,bloodgroup"`
	CurrentMedications *[]string `json:"current_medications"`
	MedicationHistory  *[]string `json:"medication_history"`
}

// CreatedProfile is returned once, at creation, and is the only response
// that carries the PIN.
type CreatedProfile struct {
	PatientID string   `json:"patient_id"`
	PIN       string   `json:"pin"`
	Patient   *Patient `json:"patient"`
	Uploaded  []string `json:"uploaded,omitempty"`
}

// Dashboard is what an authenticated or view-only session sees.
type Dashboard struct {
	Patient           *Patient   `json:"patient"`
	Mode              string     `json:"mode"`
	Reports           []Artifact `json:"reports"`
	HasProfilePicture bool       `json:"has_profile_picture"`
}
