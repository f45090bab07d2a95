package federation

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/accesscore/internal/domain/catalog"
)

type Handler struct {
	retriever *Retriever
}

func NewHandler(retriever *Retriever) *Handler {
	return &Handler{retriever: retriever}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/documents/:id/download", h.Download)
}

// Download streams the document bytes from the owning peripheral node,
// after the policy check. The requester's identity arrives as query
// parameters from the host container, which has already authenticated the
// session.
func (h *Handler) Download(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}
	requesterID := c.QueryParam("requesterId")
	if requesterID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "requesterId is required")
	}

	dl, err := h.retriever.PrepareDownload(c.Request().Context(), id, RequestMeta{
		RequesterID:        requesterID,
		RequesterName:      c.QueryParam("requesterName"),
		RequesterSpecialty: c.QueryParam("specialty"),
		ClinicID:           c.QueryParam("clinicId"),
		IPAddress:          c.RealIP(),
		UserAgent:          c.Request().UserAgent(),
	})
	if err != nil {
		var re *RetrievalError
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "document not found")
		case errors.Is(err, ErrAccessDenied):
			return echo.NewHTTPError(http.StatusForbidden, "access denied")
		case errors.As(err, &re):
			return echo.NewHTTPError(http.StatusBadGateway, re.Error())
		default:
			return echo.NewHTTPError(http.StatusBadGateway, "document retrieval failed")
		}
	}
	defer dl.Body.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, dl.FileName))
	return c.Stream(http.StatusOK, dl.ContentType, dl.Body)
}
