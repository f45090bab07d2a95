package accessrequest

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/accesscore/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/access-requests", h.Submit)
	api.GET("/access-requests/pending", h.ListPending)
	api.GET("/access-requests/:id", h.GetRequest)
	api.POST("/access-requests/:id/approve", h.Approve)
	api.POST("/access-requests/:id/reject", h.Reject)
	api.GET("/patients/:patientId/access-requests", h.ListByPatient)
	api.GET("/patients/:patientId/access-requests/pending", h.ListPendingForPatient)
	api.GET("/requesters/:requesterId/access-requests", h.ListByRequester)
}

type submitRequest struct {
	RequesterID        string     `json:"requester_id"`
	RequesterSpecialty string     `json:"requester_specialty"`
	PatientID          string     `json:"patient_id"`
	DocumentType       *string    `json:"document_type"`
	DocumentID         *uuid.UUID `json:"document_id"`
	Reason             string     `json:"reason"`
	RequestingClinic   string     `json:"requesting_clinic"`
}

func (h *Handler) Submit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	r, err := h.svc.Submit(c.Request().Context(), &AccessRequest{
		RequesterID:        req.RequesterID,
		RequesterSpecialty: req.RequesterSpecialty,
		PatientID:          req.PatientID,
		DocumentType:       req.DocumentType,
		DocumentID:         req.DocumentID,
		Reason:             req.Reason,
		RequestingClinic:   req.RequestingClinic,
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) GetRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.GetRequest(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "access request not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

type resolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
	Comment    string `json:"comment"`
}

func (h *Handler) Approve(c echo.Context) error {
	return h.resolve(c, h.svc.Approve)
}

func (h *Handler) Reject(c echo.Context) error {
	return h.resolve(c, h.svc.Reject)
}

func (h *Handler) resolve(c echo.Context, fn func(ctx context.Context, id uuid.UUID, resolvedBy, comment string) (*AccessRequest, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	r, err := fn(c.Request().Context(), id, req.ResolvedBy, req.Comment)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "access request not found")
		case errors.Is(err, ErrAlreadyResolved):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListPending(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPending(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), c.Param("patientId"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListPendingForPatient(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPendingForPatient(c.Request().Context(), c.Param("patientId"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByRequester(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByRequester(c.Request().Context(), c.Param("requesterId"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
