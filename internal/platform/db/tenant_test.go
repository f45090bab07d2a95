package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func tenantContext(t *testing.T, target string, setup func(c echo.Context)) string {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(c)
	}
	return extractTenantID(c, "default")
}

func TestExtractTenantID_FromHeader(t *testing.T) {
	tid := tenantContext(t, "/", func(c echo.Context) {
		c.Request().Header.Set("X-Tenant-ID", "clinic_north")
	})
	if tid != "clinic_north" {
		t.Errorf("expected clinic_north, got %s", tid)
	}
}

func TestExtractTenantID_FromQuery(t *testing.T) {
	tid := tenantContext(t, "/?tenant_id=clinic_south", nil)
	if tid != "clinic_south" {
		t.Errorf("expected clinic_south, got %s", tid)
	}
}

func TestExtractTenantID_FromSession(t *testing.T) {
	tid := tenantContext(t, "/", func(c echo.Context) {
		c.Set("auth_tenant_id", "clinic_auth")
	})
	if tid != "clinic_auth" {
		t.Errorf("expected clinic_auth, got %s", tid)
	}
}

func TestExtractTenantID_Default(t *testing.T) {
	if tid := tenantContext(t, "/", nil); tid != "default" {
		t.Errorf("expected default, got %s", tid)
	}
}

func TestExtractTenantID_SessionWinsOverHeaderAndQuery(t *testing.T) {
	tid := tenantContext(t, "/?tenant_id=query", func(c echo.Context) {
		c.Request().Header.Set("X-Tenant-ID", "header")
		c.Set("auth_tenant_id", "session")
	})
	if tid != "session" {
		t.Errorf("expected session to win, got %s", tid)
	}
}

func TestExtractTenantID_HeaderWinsOverQuery(t *testing.T) {
	tid := tenantContext(t, "/?tenant_id=query", func(c echo.Context) {
		c.Request().Header.Set("X-Tenant-ID", "header")
	})
	if tid != "header" {
		t.Errorf("expected header to win over query, got %s", tid)
	}
}

func TestExtractTenantID_EmptySessionFallsThrough(t *testing.T) {
	tid := tenantContext(t, "/", func(c echo.Context) {
		c.Set("auth_tenant_id", "")
		c.Request().Header.Set("X-Tenant-ID", "clinic_north")
	})
	if tid != "clinic_north" {
		t.Errorf("expected fallthrough to header on empty session tenant, got %s", tid)
	}
}

func TestTenantIDPattern(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"abc", true},
		{"ABC", true},
		{"clinic_7", true},
		{"tenant_abc_123", true},
		{"A1B2", true},
		{"a-b", false},
		{"a.b", false},
		{"a b", false},
		{"a/b", false},
		{"'; DROP TABLE", false},
		{"tenant@1", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tenantIDPattern.MatchString(tt.input); got != tt.valid {
			t.Errorf("tenantIDPattern.MatchString(%q) = %v, want %v", tt.input, got, tt.valid)
		}
	}
}

func TestConnFromContext_Empty(t *testing.T) {
	if conn := ConnFromContext(context.Background()); conn != nil {
		t.Error("expected nil conn from empty context")
	}
}

func TestConnFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBConnKey, "not-a-conn")
	if conn := ConnFromContext(ctx); conn != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestTenantFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), TenantIDKey, "clinic_east")
	if tid := TenantFromContext(ctx); tid != "clinic_east" {
		t.Errorf("expected clinic_east, got %s", tid)
	}
	if tid := TenantFromContext(context.Background()); tid != "" {
		t.Errorf("expected empty string, got %s", tid)
	}
}

func TestTenantFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), TenantIDKey, 12345)
	if tid := TenantFromContext(ctx); tid != "" {
		t.Errorf("expected empty string when context value is wrong type, got %q", tid)
	}
}

func TestCreateTenantSchema_RejectsInvalidIDs(t *testing.T) {
	invalid := []string{"invalid-id!", "clinic.with.dot", "ten ant", "drop;table"}
	for _, id := range invalid {
		if err := CreateTenantSchema(context.Background(), nil, id, ""); err == nil {
			t.Errorf("expected error for invalid tenant ID %q", id)
		}
	}
}
