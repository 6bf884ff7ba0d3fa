// Package validator holds the custom validation tags used by request
// bindings and turns validation failures into readable messages.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/medvault-api/internal/model"
)

var (
	pinPattern       = regexp.MustCompile(`^\d{4}$`)
	patientIDPattern = regexp.MustCompile(`^PAT\d+$`)
)

// Register adds the custom tags to v and reports fields by their json name.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	for tag, fn := range map[string]validator.Func{
		"bloodgroup": BloodGroup,
		"pin":        PIN,
		"patientid":  PatientID,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

func BloodGroup(fl validator.FieldLevel) bool {
	return model.BloodGroup(fl.Field().String()).Valid()
}

// PIN accepts exactly four ASCII digits.
func PIN(fl validator.FieldLevel) bool {
	return pinPattern.MatchString(fl.Field().String())
}

func PatientID(fl validator.FieldLevel) bool {
	return patientIDPattern.MatchString(fl.Field().String())
}

var messages = map[string]string{
	"required":   "is required",
	"email":      "must be a valid e-mail address",
	"datetime":   "must be a YYYY-MM-DD date",
	"bloodgroup": "must be one of A+, A-, B+, B-, AB+, AB-, O+, O-",
	"pin":        "must be 4 digits",
	"patientid":  "must look like PAT001",
	"min":        "is too short",
}

// Message renders a binding error for the client. Errors that did not come
// from the validator are returned as-is.
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msg, ok := messages[e.Tag()]
		if !ok {
			msg = "is invalid"
		}
		parts = append(parts, e.Field()+" "+msg)
	}
	return strings.Join(parts, "; ")
}
