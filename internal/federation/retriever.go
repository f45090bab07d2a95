package federation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/accesscore/internal/domain/audit"
	"github.com/ehr/accesscore/internal/domain/catalog"
	"github.com/ehr/accesscore/internal/domain/policy"
)

// ErrAccessDenied means no active policy authorizes the requester for the
// document.
var ErrAccessDenied = errors.New("access denied")

// RetrievalError is a non-success response from the peripheral node.
type RetrievalError struct {
	StatusCode int
	Body       string
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("peripheral node responded %d: %s", e.StatusCode, e.Body)
}

// Authorizer is the slice of the policy engine the retriever needs.
type Authorizer interface {
	Evaluate(ctx context.Context, in policy.EvalInput) bool
}

// RequestMeta identifies who is downloading, for the policy check and the
// audit trail.
type RequestMeta struct {
	RequesterID        string
	RequesterName      string
	RequesterSpecialty string
	ClinicID           string
	IPAddress          string
	UserAgent          string
}

// Download is a prepared document stream. The caller owns Body and must
// close it.
type Download struct {
	Body        io.ReadCloser
	ContentType string
	FileName    string
}

// Options configures how pointer URIs are resolved on this deployment.
type Options struct {
	// RewriteHosts substitutes the public hostname in pointer URIs with
	// PrivateHost (and PrivatePort if set). Deployments where peripheral
	// nodes are only reachable on a private network enable this.
	RewriteHosts bool
	PrivateHost  string
	PrivatePort  string
	FetchTimeout time.Duration
}

// Retriever fetches document bytes from the peripheral node named by a
// catalog entry. Every PrepareDownload call records exactly one audit entry
// whose outcome matches the result.
type Retriever struct {
	catalog catalog.Store
	authz   Authorizer
	tokens  TokenSource
	audit   audit.Recorder
	client  *http.Client
	opts    Options
	logger  zerolog.Logger
}

func NewRetriever(store catalog.Store, authz Authorizer, tokens TokenSource, recorder audit.Recorder, opts Options, logger zerolog.Logger) *Retriever {
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Retriever{
		catalog: store,
		authz:   authz,
		tokens:  tokens,
		audit:   recorder,
		client:  &http.Client{Timeout: timeout},
		opts:    opts,
		logger:  logger,
	}
}

// PrepareDownload authorizes the requester, resolves the document's owning
// node and opens the byte stream.
func (r *Retriever) PrepareDownload(ctx context.Context, id uuid.UUID, meta RequestMeta) (*Download, error) {
	base := audit.Entry{
		RequesterID:        meta.RequesterID,
		RequesterName:      meta.RequesterName,
		RequesterSpecialty: meta.RequesterSpecialty,
		DocumentID:         &id,
		ClinicID:           meta.ClinicID,
		IPAddress:          meta.IPAddress,
		UserAgent:          meta.UserAgent,
		Reference:          "document download",
	}

	entry, err := r.catalog.GetByID(ctx, id)
	if err != nil {
		r.audit.Record(ctx, base.Denied("document not found"))
		return nil, err
	}
	base.PatientID = entry.PatientID
	base.DocumentType = entry.DocumentType

	if !r.authz.Evaluate(ctx, policy.EvalInput{
		RequesterID:        meta.RequesterID,
		RequesterName:      meta.RequesterName,
		RequesterSpecialty: meta.RequesterSpecialty,
		PatientID:          entry.PatientID,
		DocumentType:       entry.DocumentType,
		ClinicID:           meta.ClinicID,
		IPAddress:          meta.IPAddress,
		UserAgent:          meta.UserAgent,
		Reference:          fmt.Sprintf("download of document %s", id),
	}) {
		r.audit.Record(ctx, base.Denied("access denied"))
		return nil, ErrAccessDenied
	}

	dl, err := r.fetch(ctx, entry)
	if err != nil {
		r.audit.Record(ctx, base.Denied(retrievalReason(err)))
		return nil, err
	}

	r.audit.Record(ctx, base.Permitted())
	return dl, nil
}

func (r *Retriever) fetch(ctx context.Context, entry *catalog.Entry) (*Download, error) {
	u, err := url.Parse(entry.PointerURI)
	if err != nil {
		return nil, fmt.Errorf("parse pointer uri %q: %w", entry.PointerURI, err)
	}

	if r.opts.RewriteHosts {
		host := r.opts.PrivateHost
		if r.opts.PrivatePort != "" {
			host = net.JoinHostPort(host, r.opts.PrivatePort)
		}
		u.Host = host
	}

	tenant, tenantKnown := entry.ResolveTenant()
	if tenantKnown {
		q := u.Query()
		q.Set("tenantId", tenant)
		u.RawQuery = q.Encode()
	} else {
		r.logger.Warn().
			Str("document_id", entry.ID.String()).
			Str("origin_clinic_label", entry.OriginClinicLabel).
			Msg("no tenant resolvable for catalog entry, fetching without tenantId")
	}

	resp, err := r.get(ctx, u.String(), true)
	if err != nil {
		return nil, err
	}

	// Some private-network deployments allow anonymous access and reject
	// bearer tokens they cannot verify. Retry once without credentials.
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		r.logger.Warn().
			Str("document_id", entry.ID.String()).
			Int("status", resp.StatusCode).
			Str("url", u.Redacted()).
			Msg("node rejected service token, retrying anonymously")
		resp, err = r.get(ctx, u.String(), false)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &RetrievalError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeForFormat(entry.Format)
	}

	return &Download{
		Body:        resp.Body,
		ContentType: contentType,
		FileName:    fileNameFor(entry, u),
	}, nil
}

func (r *Retriever) get(ctx context.Context, rawURL string, authenticated bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build node request: %w", err)
	}
	if authenticated {
		token, err := r.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errMintToken, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch from node: %w", err)
	}
	return resp, nil
}

var errMintToken = errors.New("mint service token")

// retrievalReason maps a fetch failure onto the audit denial reason, so the
// trail distinguishes an upstream error status from a token-mint failure
// from an unreachable node.
func retrievalReason(err error) string {
	var re *RetrievalError
	switch {
	case errors.As(err, &re):
		return fmt.Sprintf("retrieval failed: node responded %d", re.StatusCode)
	case errors.Is(err, errMintToken):
		return "retrieval failed: could not mint service token"
	default:
		return "retrieval failed: node unreachable"
	}
}

var formatContentTypes = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"dcm":  "application/dicom",
	"hl7":  "text/plain",
}

func contentTypeForFormat(format string) string {
	if ct, ok := formatContentTypes[strings.ToLower(format)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// fileNameFor derives a download filename from the pointer URI path,
// falling back to the document id when the path has none.
func fileNameFor(entry *catalog.Entry, u *url.URL) string {
	name := sanitizeFileName(path.Base(u.Path))
	if name != "" {
		return name
	}
	if f := strings.ToLower(strings.TrimSpace(entry.Format)); f != "" {
		return entry.ID.String() + "." + f
	}
	return entry.ID.String()
}

// sanitizeFileName keeps letters, digits, '.', '-' and '_' and replaces
// everything else. The name ends up in a Content-Disposition header.
func sanitizeFileName(name string) string {
	if name == "." || name == "/" || name == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), ".")
}
