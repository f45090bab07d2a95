package federation

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/accesscore/internal/domain/audit"
	"github.com/ehr/accesscore/internal/domain/catalog"
	"github.com/ehr/accesscore/internal/domain/policy"
)

type mockCatalog struct {
	entries map[uuid.UUID]*catalog.Entry
}

func (m *mockCatalog) GetByID(_ context.Context, id uuid.UUID) (*catalog.Entry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return e, nil
}

func (m *mockCatalog) ListByPatient(_ context.Context, patientID string, _, _ int) ([]*catalog.Entry, int, error) {
	var out []*catalog.Entry
	for _, e := range m.entries {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

type mockAuthorizer struct {
	permit bool
	inputs []policy.EvalInput
}

func (m *mockAuthorizer) Evaluate(_ context.Context, in policy.EvalInput) bool {
	m.inputs = append(m.inputs, in)
	return m.permit
}

type mockRecorder struct {
	mu      sync.Mutex
	entries []*audit.Entry
}

func (m *mockRecorder) Record(_ context.Context, e *audit.Entry) *audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return e
}

func (m *mockRecorder) last(t *testing.T) *audit.Entry {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) != 1 {
		t.Fatalf("expected exactly 1 audit entry, got %d", len(m.entries))
	}
	return m.entries[0]
}

func staticTokens(token string) TokenSource {
	return TokenSourceFunc(func(context.Context) (string, error) {
		return token, nil
	})
}

func testEntry(pointerURI string) *catalog.Entry {
	return &catalog.Entry{
		ID:                uuid.New(),
		PatientID:         "12345678",
		DocumentType:      "LAB_RESULT",
		Format:            "pdf",
		PointerURI:        pointerURI,
		OriginClinicLabel: "Clinic 7",
	}
}

func testRetriever(entry *catalog.Entry, permit bool, opts Options) (*Retriever, *mockAuthorizer, *mockRecorder) {
	store := &mockCatalog{entries: map[uuid.UUID]*catalog.Entry{}}
	if entry != nil {
		store.entries[entry.ID] = entry
	}
	authz := &mockAuthorizer{permit: permit}
	recorder := &mockRecorder{}
	r := NewRetriever(store, authz, staticTokens("tok-123"), recorder, opts, zerolog.New(os.Stderr))
	return r, authz, recorder
}

var meta = RequestMeta{
	RequesterID:        "profX",
	RequesterSpecialty: "CARDIOLOGY",
	ClinicID:           "C1",
	IPAddress:          "10.0.0.1",
	UserAgent:          "test",
}

func TestPrepareDownload_StreamsWithBearerAndTenant(t *testing.T) {
	var gotAuth, gotTenant string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTenant = r.URL.Query().Get("tenantId")
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 payload"))
	}))
	defer srv.Close()

	entry := testEntry(srv.URL + "/docs/report.pdf")
	r, authz, recorder := testRetriever(entry, true, Options{})

	dl, err := r.PrepareDownload(context.Background(), entry.ID, meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer dl.Body.Close()

	if gotAuth != "Bearer tok-123" {
		t.Errorf("expected bearer token, got %q", gotAuth)
	}
	if gotTenant != "7" {
		t.Errorf("expected tenantId=7 from clinic label, got %q", gotTenant)
	}
	if dl.ContentType != "application/pdf" {
		t.Errorf("unexpected content type %q", dl.ContentType)
	}
	if dl.FileName != "report.pdf" {
		t.Errorf("unexpected file name %q", dl.FileName)
	}

	body, _ := io.ReadAll(dl.Body)
	if string(body) != "%PDF-1.4 payload" {
		t.Errorf("unexpected body %q", body)
	}

	if len(authz.inputs) != 1 {
		t.Fatalf("expected 1 policy check, got %d", len(authz.inputs))
	}
	in := authz.inputs[0]
	if in.PatientID != "12345678" || in.DocumentType != "LAB_RESULT" || in.ClinicID != "C1" {
		t.Errorf("unexpected policy input: %+v", in)
	}

	e := recorder.last(t)
	if !e.Succeeded {
		t.Error("expected a succeeded audit entry")
	}
	if e.DocumentID == nil || *e.DocumentID != entry.ID {
		t.Error("expected document id on the audit entry")
	}
}

func TestPrepareDownload_UsesExplicitTenantOverLabel(t *testing.T) {
	var gotTenant string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTenant = r.URL.Query().Get("tenantId")
	}))
	defer srv.Close()

	entry := testEntry(srv.URL + "/docs/report.pdf")
	explicit := "3"
	entry.TenantID = &explicit
	r, _, _ := testRetriever(entry, true, Options{})

	dl, err := r.PrepareDownload(context.Background(), entry.ID, meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dl.Body.Close()

	if gotTenant != "3" {
		t.Errorf("expected explicit tenantId=3, got %q", gotTenant)
	}
}

func TestPrepareDownload_AnonymousRetryOnRejectedToken(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Header.Get("Authorization"))
		if r.Header.Get("Authorization") != "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("bytes"))
	}))
	defer srv.Close()

	entry := testEntry(srv.URL + "/docs/scan.png")
	r, _, recorder := testRetriever(entry, true, Options{})

	dl, err := r.PrepareDownload(context.Background(), entry.ID, meta)
	if err != nil {
		t.Fatalf("expected anonymous retry to succeed, got %v", err)
	}
	dl.Body.Close()

	if len(calls) != 2 {
		t.Fatalf("expected 2 node calls, got %d", len(calls))
	}
	if calls[0] == "" || calls[1] != "" {
		t.Errorf("expected authenticated then anonymous, got %q then %q", calls[0], calls[1])
	}
	if !recorder.last(t).Succeeded {
		t.Error("expected a succeeded audit entry after the downgrade")
	}
}

func TestPrepareDownload_NodeErrorSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "tenant schema missing", http.StatusInternalServerError)
	}))
	defer srv.Close()

	entry := testEntry(srv.URL + "/docs/report.pdf")
	r, _, recorder := testRetriever(entry, true, Options{})

	_, err := r.PrepareDownload(context.Background(), entry.ID, meta)
	var re *RetrievalError
	if !errors.As(err, &re) {
		t.Fatalf("expected RetrievalError, got %v", err)
	}
	if re.StatusCode != http.StatusInternalServerError {
		t.Errorf("unexpected status %d", re.StatusCode)
	}
	if re.Body != "tenant schema missing" {
		t.Errorf("unexpected body %q", re.Body)
	}

	e := recorder.last(t)
	if e.Succeeded {
		t.Error("expected a denied audit entry for a failed retrieval")
	}
	if e.DenialReason == nil || *e.DenialReason != "retrieval failed: node responded 500" {
		t.Errorf("expected the node status in the denial reason, got %v", e.DenialReason)
	}
}

func TestPrepareDownload_TokenMintFailureIsAudited(t *testing.T) {
	entry := testEntry("http://docs.example.org/docs/report.pdf")
	store := &mockCatalog{entries: map[uuid.UUID]*catalog.Entry{entry.ID: entry}}
	recorder := &mockRecorder{}
	failing := TokenSourceFunc(func(context.Context) (string, error) {
		return "", errors.New("kms unavailable")
	})
	r := NewRetriever(store, &mockAuthorizer{permit: true}, failing, recorder, Options{}, zerolog.New(os.Stderr))

	_, err := r.PrepareDownload(context.Background(), entry.ID, meta)
	if err == nil {
		t.Fatal("expected error when the token cannot be minted")
	}

	e := recorder.last(t)
	if e.Succeeded {
		t.Error("expected a denied audit entry")
	}
	if e.DenialReason == nil || *e.DenialReason != "retrieval failed: could not mint service token" {
		t.Errorf("expected a token-mint denial reason, got %v", e.DenialReason)
	}
}

func TestPrepareDownload_UnreachableNodeIsAudited(t *testing.T) {
	// A listener that is already closed, so the dial fails.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead := srv.URL
	srv.Close()

	entry := testEntry(dead + "/docs/report.pdf")
	r, _, recorder := testRetriever(entry, true, Options{})

	_, err := r.PrepareDownload(context.Background(), entry.ID, meta)
	if err == nil {
		t.Fatal("expected error for an unreachable node")
	}

	e := recorder.last(t)
	if e.DenialReason == nil || *e.DenialReason != "retrieval failed: node unreachable" {
		t.Errorf("expected an unreachable-node denial reason, got %v", e.DenialReason)
	}
}

func TestPrepareDownload_DeniedByPolicy(t *testing.T) {
	nodeCalled := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nodeCalled = true
	}))
	defer srv.Close()

	entry := testEntry(srv.URL + "/docs/report.pdf")
	r, _, recorder := testRetriever(entry, false, Options{})

	_, err := r.PrepareDownload(context.Background(), entry.ID, meta)
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if nodeCalled {
		t.Error("expected no node call for a denied download")
	}

	e := recorder.last(t)
	if e.Succeeded {
		t.Error("expected a denied audit entry")
	}
	if e.DenialReason == nil || *e.DenialReason != "access denied" {
		t.Error("expected denial reason 'access denied'")
	}
}

func TestPrepareDownload_DocumentNotFound(t *testing.T) {
	r, authz, recorder := testRetriever(nil, true, Options{})

	_, err := r.PrepareDownload(context.Background(), uuid.New(), meta)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected catalog.ErrNotFound, got %v", err)
	}
	if len(authz.inputs) != 0 {
		t.Error("expected no policy check for a missing document")
	}
	if recorder.last(t).Succeeded {
		t.Error("expected a denied audit entry")
	}
}

func TestPrepareDownload_RewritesHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("bytes"))
	}))
	defer srv.Close()

	srvURL, _ := url.Parse(srv.URL)
	host, port, _ := net.SplitHostPort(srvURL.Host)

	// Catalog advertises a public hostname the test cannot resolve; the
	// rewrite points it at the local listener.
	entry := testEntry("http://docs.example.org/docs/report.pdf")
	r, _, _ := testRetriever(entry, true, Options{
		RewriteHosts: true,
		PrivateHost:  host,
		PrivatePort:  port,
	})

	dl, err := r.PrepareDownload(context.Background(), entry.ID, meta)
	if err != nil {
		t.Fatalf("expected rewritten fetch to succeed, got %v", err)
	}
	dl.Body.Close()
}

func TestContentTypeForFormat(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"pdf", "application/pdf"},
		{"PDF", "application/pdf"},
		{"png", "image/png"},
		{"dcm", "application/dicom"},
		{"xyz", "application/octet-stream"},
		{"", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := contentTypeForFormat(tt.format); got != tt.want {
			t.Errorf("contentTypeForFormat(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"lab result (final).pdf", "lab_result__final_.pdf"},
		{"..", ""},
		{"", ""},
		{"härtel.pdf", "h_rtel.pdf"},
	}
	for _, tt := range tests {
		if got := sanitizeFileName(tt.in); got != tt.want {
			t.Errorf("sanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
