package catalog

import "testing"

func TestTenantFromClinicLabel(t *testing.T) {
	tests := []struct {
		label  string
		tenant string
		ok     bool
	}{
		{"Clinic 7", "7", true},
		{"Clinic 42", "42", true},
		{"  Clinic 7  ", "7", true},
		{"Clinic", "", false},
		{"Clinic ", "", false},
		{"Clinic seven", "", false},
		{"Clinic 7b", "", false},
		{"Hospital 7", "", false},
		{"clinic 7", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		tenant, ok := TenantFromClinicLabel(tt.label)
		if tenant != tt.tenant || ok != tt.ok {
			t.Errorf("TenantFromClinicLabel(%q) = (%q, %v), want (%q, %v)",
				tt.label, tenant, ok, tt.tenant, tt.ok)
		}
	}
}

func TestResolveTenant_PrefersExplicitField(t *testing.T) {
	explicit := "3"
	e := &Entry{TenantID: &explicit, OriginClinicLabel: "Clinic 7"}
	tenant, ok := e.ResolveTenant()
	if !ok || tenant != "3" {
		t.Errorf("expected explicit tenant 3, got (%q, %v)", tenant, ok)
	}
}

func TestResolveTenant_FallsBackToLabel(t *testing.T) {
	e := &Entry{OriginClinicLabel: "Clinic 7"}
	tenant, ok := e.ResolveTenant()
	if !ok || tenant != "7" {
		t.Errorf("expected tenant 7 from label, got (%q, %v)", tenant, ok)
	}

	empty := ""
	e = &Entry{TenantID: &empty, OriginClinicLabel: "Clinic 9"}
	tenant, ok = e.ResolveTenant()
	if !ok || tenant != "9" {
		t.Errorf("expected empty tenant_id to fall through to label, got (%q, %v)", tenant, ok)
	}
}

func TestResolveTenant_Unresolvable(t *testing.T) {
	e := &Entry{OriginClinicLabel: "General Hospital"}
	if _, ok := e.ResolveTenant(); ok {
		t.Error("expected no tenant for an unparseable label")
	}
}
