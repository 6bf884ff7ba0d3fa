package drug

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/medvault-api/internal/service/drug"
	"github.com/jwalitptl/medvault-api/pkg/httputil"
)

type Handler struct {
	service drug.DrugService
}

func NewHandler(service drug.DrugService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	drugs := r.Group("/drugs")
	{
		drugs.GET("", h.ListDrugs)
		drugs.GET("/:name", h.LookupDrug)
	}
}

func (h *Handler) ListDrugs(c *gin.Context) {
	names, err := h.service.KnownDrugs(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, names)
}

// LookupDrug answers lookup failures with 200 and an error payload; the
// caller shows the message in place of the drug sections.
func (h *Handler) LookupDrug(c *gin.Context) {
	info, err := h.service.Lookup(c.Request.Context(), c.Param("name"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, info)
}
