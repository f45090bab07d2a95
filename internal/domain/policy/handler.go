package policy

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/accesscore/pkg/pagination"
)

type Handler struct {
	engine *Engine
	store  Store
}

func NewHandler(engine *Engine, store Store) *Handler {
	return &Handler{engine: engine, store: store}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Hot path: called by every document-listing and download flow.
	api.GET("/policies/verify", h.Verify)

	api.POST("/policies", h.CreatePolicy)
	api.GET("/policies/:id", h.GetPolicy)
	api.POST("/policies/:id/revoke", h.RevokePolicy)
	api.DELETE("/policies/:id", h.DeletePolicy)
	api.GET("/patients/:patientId/policies", h.ListByPatient)
}

// Verify answers the authorization question for a requester/patient pair.
// The response is always 200 with a permitted flag; denials are not HTTP
// errors.
func (h *Handler) Verify(c echo.Context) error {
	in := EvalInput{
		RequesterID:        c.QueryParam("requesterId"),
		RequesterName:      c.QueryParam("requesterName"),
		RequesterSpecialty: c.QueryParam("specialty"),
		PatientID:          c.QueryParam("patientId"),
		DocumentType:       c.QueryParam("documentType"),
		ClinicID:           c.QueryParam("clinicId"),
		IPAddress:          c.RealIP(),
		UserAgent:          c.Request().UserAgent(),
		Reference:          "verify endpoint",
	}
	if in.RequesterID == "" || in.PatientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "requesterId and patientId are required")
	}

	permitted := h.engine.Evaluate(c.Request().Context(), in)
	return c.JSON(http.StatusOK, map[string]bool{"permitted": permitted})
}

type createPolicyRequest struct {
	PatientID        string     `json:"patient_id"`
	GrantedTo        string     `json:"granted_to"`
	DocumentType     *string    `json:"document_type"`
	Scope            Scope      `json:"scope"`
	AuthorizedClinic *string    `json:"authorized_clinic"`
	Specialties      []string   `json:"specialties"`
	Duration         Duration   `json:"duration"`
	ExpiresAt        *time.Time `json:"expires_at"`
	Reference        string     `json:"reference"`
}

// CreatePolicy is the administrative grant: a policy created directly
// rather than through the request workflow.
func (h *Handler) CreatePolicy(c echo.Context) error {
	var req createPolicyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	p := &AccessPolicy{
		PatientID:        req.PatientID,
		GrantedTo:        req.GrantedTo,
		DocumentType:     req.DocumentType,
		Scope:            req.Scope,
		AuthorizedClinic: req.AuthorizedClinic,
		Specialties:      NormalizeSpecialties(req.Specialties),
		Duration:         req.Duration,
		ExpiresAt:        req.ExpiresAt,
		Management:       ManagementManual,
		Active:           true,
		Reference:        req.Reference,
	}
	if p.GrantedTo == "" {
		p.GrantedTo = GrantedToAny
	}
	if err := p.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.store.Create(c.Request().Context(), p); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPolicy(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.store.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "policy not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) RevokePolicy(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.store.Revoke(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "policy not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeletePolicy(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.store.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "policy not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.store.ListByPatient(c.Request().Context(), c.Param("patientId"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
