package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medvault-api/internal/middleware"
	apperrors "github.com/jwalitptl/medvault-api/pkg/errors"
	"github.com/jwalitptl/medvault-api/pkg/validator"
)

// BindError turns a gin binding failure into a bad request.
func BindError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return apperrors.BadRequest(fmt.Sprintf("request exceeds %d bytes", maxBytes.Limit), err)
	}
	if errors.Is(err, io.EOF) {
		return apperrors.BadRequest("request body is empty", err)
	}
	return apperrors.BadRequest(validator.Message(err), err)
}

// PatientID returns the patient the current session is bound to. Routes
// using it sit behind one of the session guards.
func PatientID(c *gin.Context) string {
	return middleware.GetSession(c).PatientID
}

// ReadUpload reads a multipart file fully. Request size is already capped
// by the size limit middleware.
func ReadUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.BadRequest(fmt.Sprintf("cannot read upload %q", fh.Filename), err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.BadRequest(fmt.Sprintf("cannot read upload %q", fh.Filename), err)
	}
	return data, nil
}

// ContentDisposition builds an attachment header for name.
func ContentDisposition(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}
