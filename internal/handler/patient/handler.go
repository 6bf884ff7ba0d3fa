package patient

import (
	"bytes"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/jwalitptl/medvault-api/internal/handler"
	"github.com/jwalitptl/medvault-api/internal/middleware"
	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/service/patient"
	"github.com/jwalitptl/medvault-api/internal/storage"
	apperrors "github.com/jwalitptl/medvault-api/pkg/errors"
	"github.com/jwalitptl/medvault-api/pkg/httputil"
)

const (
	formProfilePicture = "profile_pic"
	formReports        = "reports[]"
	formFile           = "file"
)

type Handler struct {
	service patient.PatientService
}

func NewHandler(service patient.PatientService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/patients", h.CreatePatient)

	me := r.Group("/me", middleware.RequireSession())
	{
		me.GET("", h.Dashboard)
		me.GET("/profile-picture", h.GetProfilePicture)
		me.GET("/reports", h.ListReports)
		me.GET("/reports/:filename", h.DownloadReport)
	}

	owner := r.Group("/me", middleware.RequireAuthenticated())
	{
		owner.PUT("", h.UpdatePatient)
		owner.PUT("/profile-picture", h.SetProfilePicture)
		owner.POST("/reports", h.UploadReport)
	}
}

// CreatePatient accepts either a JSON body or a multipart form carrying the
// same fields plus optional profile_pic and reports[] files.
func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
	var uploads *patient.Uploads

	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		if err := c.ShouldBindWith(&req, binding.FormMultipart); err != nil {
			httputil.RespondWithError(c, handler.BindError(err))
			return
		}
		u, err := readCreateUploads(c)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		uploads = u
	} else if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, handler.BindError(err))
		return
	}

	created, err := h.service.Create(c.Request.Context(), &req, uploads)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithStatus(c, http.StatusCreated, created)
}

func (h *Handler) Dashboard(c *gin.Context) {
	state := middleware.GetSession(c)

	dashboard, err := h.service.Dashboard(c.Request.Context(), state.PatientID, string(state.Mode))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, dashboard)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, handler.BindError(err))
		return
	}

	updated, err := h.service.Update(c.Request.Context(), handler.PatientID(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, updated)
}

func (h *Handler) GetProfilePicture(c *gin.Context) {
	name, data, err := h.service.ReadProfilePicture(c.Request.Context(), handler.PatientID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", "inline")
	c.Data(http.StatusOK, storage.ContentType(name, data), data)
}

func (h *Handler) SetProfilePicture(c *gin.Context) {
	fh, err := c.FormFile(formFile)
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("multipart field \"file\" is required", err))
		return
	}
	file, err := readPicture(fh)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.SetProfilePicture(c.Request.Context(), handler.PatientID(c), *file); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"profile_picture": fh.Filename})
}

func (h *Handler) ListReports(c *gin.Context) {
	reports, err := h.service.ListReports(c.Request.Context(), handler.PatientID(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if reports == nil {
		reports = []model.Artifact{}
	}

	httputil.RespondWithSuccess(c, reports)
}

func (h *Handler) UploadReport(c *gin.Context) {
	fh, err := c.FormFile(formFile)
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("multipart field \"file\" is required", err))
		return
	}
	data, err := handler.ReadUpload(fh)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	artifact, err := h.service.UploadReport(c.Request.Context(), handler.PatientID(c), patient.File{
		Name:    fh.Filename,
		Content: bytes.NewReader(data),
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithStatus(c, http.StatusCreated, artifact)
}

func (h *Handler) DownloadReport(c *gin.Context) {
	name := c.Param("filename")

	data, err := h.service.ReadReport(c.Request.Context(), handler.PatientID(c), name)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", handler.ContentDisposition(name))
	c.Data(http.StatusOK, storage.ContentType(name, data), data)
}

func readCreateUploads(c *gin.Context) (*patient.Uploads, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperrors.BadRequest("invalid multipart form", err)
	}

	uploads := &patient.Uploads{}
	if files := form.File[formProfilePicture]; len(files) > 0 {
		pic, err := readPicture(files[0])
		if err != nil {
			return nil, err
		}
		uploads.ProfilePicture = pic
	}

	reports := append(form.File[formReports], form.File["reports"]...)
	for _, fh := range reports {
		data, err := handler.ReadUpload(fh)
		if err != nil {
			return nil, err
		}
		uploads.Reports = append(uploads.Reports, patient.File{Name: fh.Filename, Content: bytes.NewReader(data)})
	}
	return uploads, nil
}

// readPicture loads an uploaded profile picture and checks that the content
// really is an image, whatever the file name says.
func readPicture(fh *multipart.FileHeader) (*patient.File, error) {
	data, err := handler.ReadUpload(fh)
	if err != nil {
		return nil, err
	}
	if !model.HasExtension(fh.Filename, model.ProfilePictureExtensions) {
		return nil, apperrors.BadRequest("profile picture must be a png or jpeg file", nil)
	}
	if !storage.IsImage(data) {
		return nil, apperrors.BadRequest("profile picture content is not a png or jpeg image", nil)
	}
	return &patient.File{Name: fh.Filename, Content: bytes.NewReader(data)}, nil
}
