package document

import (
	"strings"
	"time"
)

// Status is the signing state of an agreement. It only ever moves from
// PENDING to SIGNED.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSigned  Status = "SIGNED"
)

// Document is the canonical agreement model served by the API. Stored
// records may carry legacy field names; see FromRecord.
type Document struct {
	ID           string                 `json:"id"`
	Title        string                 `json:"title"`
	Status       Status                 `json:"status"`
	CreatedAt    int64                  `json:"createdAt"`
	SignedAt     *int64                 `json:"signedAt,omitempty"`
	SignerIP     string                 `json:"signerIP,omitempty"`
	SignerGmail  string                 `json:"signerGmail,omitempty"`
	FileURL      string                 `json:"fileUrl,omitempty"`
	SignedPdfURL string                 `json:"signedPdfUrl,omitempty"`
	AgentID      string                 `json:"agentId"`
	AgentName    string                 `json:"agentName,omitempty"`
	Metadata     map[string]interface{} `json:"metadata"`
	SignToken    string                 `json:"signToken,omitempty"`
	Version      int64                  `json:"version"`

	// StoreKey is the raw primary key as persisted (string or ObjectID).
	StoreKey interface{} `json:"-"`
}

// Meta returns a metadata value as a trimmed string, or "".
func (d *Document) Meta(key string) string {
	if d == nil || d.Metadata == nil {
		return ""
	}
	switch v := d.Metadata[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(stringify(v))
	}
}

// OwnedBy reports whether the agent with the given id owns the document.
// An empty id never owns anything.
func (d *Document) OwnedBy(userID string) bool {
	if d == nil || userID == "" {
		return false
	}
	return d.AgentID == userID || d.Meta("agentId") == userID
}

// IsSigned reports whether the document reached the terminal state.
func (d *Document) IsSigned() bool { return d != nil && d.Status == StatusSigned }

// SignerInfo is stamped onto the signature certificate.
type SignerInfo struct {
	Email     string
	SignedAt  time.Time
	Company   string
	OwnerName string
}

// SignerInfoFor derives certificate details from the document metadata and
// the email hint supplied by the signer.
func SignerInfoFor(d *Document, emailHint string, at time.Time) SignerInfo {
	email := strings.TrimSpace(emailHint)
	if email == "" {
		email = d.Meta("clientEmail")
	}
	company := d.Meta("clientCompanyName")
	if company == "" {
		company = d.Meta("clientCompany")
	}
	owner := d.Meta("businessOwnerName")
	if owner == "" {
		owner = d.Meta("clientName")
	}
	return SignerInfo{Email: email, SignedAt: at, Company: company, OwnerName: owner}
}

// Filter narrows a listing.
type Filter struct {
	Status   string
	OwnerID  string
	ClientID string
	Limit    int
}

// MaxListLimit caps listings.
const MaxListLimit = 1000

// Matches evaluates the filter against a document in memory.
func (f Filter) Matches(d *Document) bool {
	if f.Status != "" && !strings.EqualFold(string(d.Status), strings.TrimSpace(f.Status)) {
		return false
	}
	if f.OwnerID != "" && !d.OwnedBy(f.OwnerID) {
		return false
	}
	if f.ClientID != "" && d.Meta("clientId") != f.ClientID {
		return false
	}
	return true
}

// EffectiveLimit clamps the requested limit into (0, MaxListLimit].
func (f Filter) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > MaxListLimit {
		return MaxListLimit
	}
	return f.Limit
}
