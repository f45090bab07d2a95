package audit

import (
	"context"
	"net/http"
	"time"

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
	api.GET("/audit/:id", h.GetEntry)
	api.GET("/audit", h.ListByDateRange)
	api.GET("/patients/:patientId/audit", h.ListByPatient)
	api.GET("/requesters/:requesterId/audit", h.ListByRequester)
	api.GET("/documents/:documentId/audit", h.ListByDocument)

	api.GET("/audit/reports/daily", h.ReportDaily)
	api.GET("/audit/reports/requesters", h.ReportRequesters)
	api.GET("/audit/reports/patients", h.ReportPatients)
	api.GET("/audit/reports/document-types", h.ReportDocumentTypes)
}

func (h *Handler) GetEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.svc.GetEntry(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "audit entry not found")
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), c.Param("patientId"), pg.Limit, pg.Offset)
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

func (h *Handler) ListByDocument(c echo.Context) error {
	docID, err := uuid.Parse(c.Param("documentId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid document id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByDocument(c.Request().Context(), docID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByDateRange(c echo.Context) error {
	from, to, err := dateRange(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByDateRange(c.Request().Context(), from, to, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ReportDaily(c echo.Context) error {
	return h.report(c, h.svc.CountsPerDay)
}

func (h *Handler) ReportRequesters(c echo.Context) error {
	return h.keyReport(c, h.svc.CountsPerRequester)
}

func (h *Handler) ReportPatients(c echo.Context) error {
	return h.keyReport(c, h.svc.CountsPerPatient)
}

func (h *Handler) ReportDocumentTypes(c echo.Context) error {
	return h.keyReport(c, h.svc.CountsPerDocumentType)
}

func (h *Handler) report(c echo.Context, fn func(ctx context.Context, from, to time.Time) ([]DayCount, error)) error {
	from, to, err := dateRange(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := fn(c.Request().Context(), from, to)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) keyReport(c echo.Context, fn func(ctx context.Context, from, to time.Time) ([]KeyCount, error)) error {
	from, to, err := dateRange(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := fn(c.Request().Context(), from, to)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, out)
}

// dateRange parses from/to query params (date or RFC 3339), defaulting to
// the last 30 days. The upper bound is exclusive.
func dateRange(c echo.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now

	var err error
	if v := c.QueryParam("from"); v != "" {
		if from, err = parseDate(v); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if v := c.QueryParam("to"); v != "" {
		if to, err = parseDate(v); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
