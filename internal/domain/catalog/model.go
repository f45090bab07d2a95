// Package catalog is the read-only boundary to the central document index.
// The access core never writes catalog entries; it only resolves them when
// preparing a federated download.
package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry is one indexed document: metadata plus a pointer to the peripheral
// node that holds the actual bytes.
type Entry struct {
	ID                uuid.UUID  `json:"id"`
	PatientID         string     `json:"patient_id"`
	DocumentType      string     `json:"document_type"`
	Format            string     `json:"format"`
	CreatedAt         time.Time  `json:"created_at"`
	PointerURI        string     `json:"pointer_uri"`
	OriginClinicLabel string     `json:"origin_clinic_label"`
	TenantID          *string    `json:"tenant_id"`
	AuthorID          string     `json:"author_id"`
	Description       string     `json:"description"`
	Restricted        bool       `json:"restricted"`
}

// ResolveTenant returns the tenant that owns the entry. It prefers the
// explicit tenant_id column and otherwise falls back to parsing the
// free-text clinic label.
func (e *Entry) ResolveTenant() (string, bool) {
	if e.TenantID != nil && *e.TenantID != "" {
		return *e.TenantID, true
	}
	return TenantFromClinicLabel(e.OriginClinicLabel)
}

// TenantFromClinicLabel parses a tenant id out of a label of the form
// "Clinic <N>". Legacy fallback for rows indexed before tenant_id was
// populated; do not extend it to other label shapes.
// TODO: drop once the backfill of tenant_id on old catalog rows lands.
func TenantFromClinicLabel(label string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(label), "Clinic ")
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return rest, true
}
