// Package session decides, per request, whether the caller is
// unauthenticated, logged in, or viewing a shared record.
package session

import (
	"errors"
	"strings"
	"time"

	apperrors "github.com/jwalitptl/medvault-api/pkg/errors"
)

type Mode string

const (
	ModeUnauthenticated Mode = "unauthenticated"
	ModeAuthenticated   Mode = "authenticated"
	ModeViewOnly        Mode = "view_only"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeUnauthenticated, ModeAuthenticated, ModeViewOnly:
		return true
	}
	return false
}

type Event string

const (
	EventLogin       Event = "login"
	EventPresentLink Event = "present_link"
	EventLogout      Event = "logout"
	EventBack        Event = "back"
)

// State is the access state of one request.
type State struct {
	Mode      Mode
	PatientID string
	TokenID   string
	ExpiresAt time.Time
}

func Unauthenticated() State {
	return State{Mode: ModeUnauthenticated}
}

func (s State) IsAuthenticated() bool { return s.Mode == ModeAuthenticated }
func (s State) IsViewOnly() bool      { return s.Mode == ModeViewOnly }

// HasPatient reports whether the state grants access to a patient record.
func (s State) HasPatient() bool {
	return (s.IsAuthenticated() || s.IsViewOnly()) && s.PatientID != ""
}

var transitions = map[Mode]map[Event]Mode{
	ModeUnauthenticated: {
		EventLogin:       ModeAuthenticated,
		EventPresentLink: ModeViewOnly,
	},
	ModeAuthenticated: {
		EventLogout: ModeUnauthenticated,
	},
	ModeViewOnly: {
		EventBack: ModeUnauthenticated,
	},
}

// Next returns the mode reached from from on a successful event. Any pair
// not in the table fails with InvalidTransition.
func Next(from Mode, event Event) (Mode, error) {
	if to, ok := transitions[from][event]; ok {
		return to, nil
	}
	return from, apperrors.InvalidTransition(string(from), string(event))
}

const linkSeparator = "_"

var errMalformedLink = errors.New("link token must be <patient_id>_<pin>")

// LinkToken builds the token embedded in share links.
func LinkToken(patientID, pin string) string {
	return patientID + linkSeparator + pin
}

// ParseLinkToken splits a link token into its ID and PIN. The token must
// contain exactly one separator with text on both sides.
func ParseLinkToken(token string) (string, string, error) {
	if strings.Count(token, linkSeparator) != 1 {
		return "", "", apperrors.InvalidLink(errMalformedLink)
	}
	id, pin, _ := strings.Cut(token, linkSeparator)
	if id == "" || pin == "" {
		return "", "", apperrors.InvalidLink(errMalformedLink)
	}
	return id, pin, nil
}
