package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signflow/signflow-server/internal/document"
	"github.com/signflow/signflow-server/internal/document/repository"
	"github.com/signflow/signflow-server/internal/models"
	"github.com/signflow/signflow-server/internal/notify"
	"github.com/signflow/signflow-server/internal/pdf"
	"github.com/signflow/signflow-server/pkg/logger"
	"github.com/signflow/signflow-server/pkg/metrics"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("invalid token")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
)

// SignerMismatchError is returned when a verified signer email does not
// match the client the document was sent to.
type SignerMismatchError struct {
	Expected string
}

func (e *SignerMismatchError) Error() string {
	if e.Expected == "" {
		return "Access denied for this document."
	}
	return fmt.Sprintf("Access denied. This document is assigned to %s.", e.Expected)
}

func (e *SignerMismatchError) Unwrap() error { return ErrForbidden }

// Renderer builds the agreement PDF and stamps the signature certificate.
type Renderer interface {
	RenderBase(ctx context.Context, d *document.Document) ([]byte, float64, error)
	EmbedSignature(ctx context.Context, base []byte, sig pdf.Signature, info document.SignerInfo, lastY *float64) ([]byte, error)
}

// Archiver keeps a copy of signed PDFs in object storage.
type Archiver interface {
	ArchiveSignedPDF(ctx context.Context, docID string, data []byte) error
	PresignedURL(ctx context.Context, docID string, expiry time.Duration) (string, error)
}

// Options tunes the workflow.
type Options struct {
	FrontendURL        string
	DefaultAgencyEmail string
	// StrictToken requires sign requests to present the current sign token.
	StrictToken bool
}

// Service runs the agreement lifecycle: creation, link delivery, signing.
type Service struct {
	repo     repository.Repository
	renderer Renderer
	notifier notify.Notifier
	archiver Archiver
	opts     Options
	now      func() time.Time
}

func New(repo repository.Repository, renderer Renderer, notifier notify.Notifier, opts Options) *Service {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Service{repo: repo, renderer: renderer, notifier: notifier, opts: opts, now: time.Now}
}

// WithArchiver enables archiving of signed PDFs.
func (s *Service) WithArchiver(a Archiver) *Service {
	s.archiver = a
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) load(ctx context.Context, id string) (*document.Document, error) {
	d, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	return d, nil
}

func (s *Service) save(ctx context.Context, d *document.Document, version int64) error {
	err := s.repo.Save(ctx, d, version)
	switch {
	case errors.Is(err, repository.ErrConflict):
		return ErrConflict
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("save document %s: %w", d.ID, err)
	}
	return nil
}

func canAccess(u *models.User, d *document.Document) bool {
	return u.IsAdmin() || d.OwnedBy(u.ID)
}

// ListQuery carries the listing filters a caller may send.
type ListQuery struct {
	Status   string
	AgentID  string
	ClientID string
}

func scopeFilter(u *models.User, q ListQuery) document.Filter {
	f := document.Filter{
		Status:   strings.TrimSpace(q.Status),
		ClientID: strings.TrimSpace(q.ClientID),
		Limit:    document.MaxListLimit,
	}
	if u.IsAdmin() {
		f.OwnerID = strings.TrimSpace(q.AgentID)
	} else {
		f.OwnerID = u.ID
	}
	return f
}

// List returns the caller's documents, or any documents for admins.
func (s *Service) List(ctx context.Context, u *models.User, q ListQuery) ([]*document.Document, error) {
	if !u.IsAdmin() && u.ID == "" {
		return []*document.Document{}, nil
	}
	docs, err := s.repo.List(ctx, scopeFilter(u, q))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Stats counts documents by status within the caller's scope.
type Stats struct {
	Total   int64 `json:"total"`
	Pending int64 `json:"pending"`
	Signed  int64 `json:"signed"`
}

func (s *Service) Stats(ctx context.Context, u *models.User) (Stats, error) {
	var st Stats
	if !u.IsAdmin() && u.ID == "" {
		return st, nil
	}
	f := scopeFilter(u, ListQuery{})
	var err error
	if st.Total, err = s.repo.Count(ctx, f); err != nil {
		return Stats{}, fmt.Errorf("count documents: %w", err)
	}
	f.Status = string(document.StatusPending)
	if st.Pending, err = s.repo.Count(ctx, f); err != nil {
		return Stats{}, fmt.Errorf("count documents: %w", err)
	}
	f.Status = string(document.StatusSigned)
	if st.Signed, err = s.repo.Count(ctx, f); err != nil {
		return Stats{}, fmt.Errorf("count documents: %w", err)
	}
	return st, nil
}

// Get returns a document the caller owns (or any, for admins).
func (s *Service) Get(ctx context.Context, u *models.User, id string) (*document.Document, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(u, d) {
		return nil, ErrForbidden
	}
	return d, nil
}

// GetPublic returns a document to a client holding its sign token.
func (s *Service) GetPublic(ctx context.Context, id, token string) (*document.Document, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if token == "" || token != d.SignToken {
		return nil, ErrUnauthorized
	}
	return d, nil
}

// CreateInput is the body of a create request.
type CreateInput struct {
	Title    string                 `json:"title"`
	FileURL  string                 `json:"fileUrl"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Delivery describes a document together with its signing link.
type Delivery struct {
	Document *document.Document `json:"document"`
	Link     string             `json:"link"`
	Notified bool               `json:"notified"`
}

// Create stores a new PENDING document and emails the signing link when a
// client email is known. Admins may create on behalf of another agent via
// metadata.agentId.
func (s *Service) Create(ctx context.Context, u *models.User, in CreateInput) (*Delivery, error) {
	md := make(map[string]interface{}, len(in.Metadata)+1)
	for k, v := range in.Metadata {
		md[k] = v
	}
	d := &document.Document{
		ID:        document.NewID(),
		Title:     strings.TrimSpace(in.Title),
		Status:    document.StatusPending,
		CreatedAt: s.now().UnixMilli(),
		FileURL:   strings.TrimSpace(in.FileURL),
		Metadata:  md,
		SignToken: document.NewSignToken(),
	}
	if d.Title == "" {
		d.Title = "Untitled"
	}

	d.AgentID = u.ID
	d.AgentName = u.DisplayName()
	if u.IsAdmin() {
		if v := d.Meta("agentId"); v != "" {
			d.AgentID = v
		}
		if v := d.Meta("agentName"); v != "" {
			d.AgentName = v
		}
	}
	md["agentId"] = d.AgentID
	if d.AgentID == u.ID && u.Signature != "" && d.Meta("agentSignature") == "" {
		md["agentSignature"] = u.Signature
	}

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	metrics.DocumentsCreated.Inc()
	logger.Infof("document %s created by %s", d.ID, u.ID)

	return s.deliver(ctx, d), nil
}

func (s *Service) deliver(ctx context.Context, d *document.Document) *Delivery {
	out := &Delivery{Document: d, Link: notify.BuildLink(s.opts.FrontendURL, d.ID, d.SignToken)}
	to := d.Meta("clientEmail")
	if to == "" {
		return out
	}
	replyTo := d.Meta("agencyEmail")
	if replyTo == "" {
		replyTo = s.opts.DefaultAgencyEmail
	}
	agent := d.AgentName
	if agent == "" {
		agent = "Agent"
	}
	client := d.Meta("clientName")
	if client == "" {
		client = "Client"
	}
	err := s.notifier.SendSigningLink(ctx, notify.SigningLink{
		To:         to,
		ReplyTo:    replyTo,
		AgentName:  agent,
		ClientName: client,
		Title:      d.Title,
		Link:       out.Link,
	})
	if err != nil {
		logger.Errorf("notify %s for document %s: %v", to, d.ID, err)
		return out
	}
	out.Notified = true
	return out
}

// Resend rotates the sign token and delivers a fresh link. The previous
// link stops working once the new token is stored.
func (s *Service) Resend(ctx context.Context, u *models.User, id string) (*Delivery, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(u, d) {
		return nil, ErrForbidden
	}
	if d.IsSigned() {
		return nil, fmt.Errorf("%w: document is already signed", ErrConflict)
	}
	d.SignToken = document.NewSignToken()
	if err := s.save(ctx, d, d.Version); err != nil {
		return nil, err
	}
	logger.Infof("document %s token rotated by %s", d.ID, u.ID)
	return s.deliver(ctx, d), nil
}

// SignInput is what a client submits to sign.
type SignInput struct {
	Signature   string
	Token       string
	SignerEmail string
	SignerIP    string
}

func (s *Service) checkToken(d *document.Document, token string) bool {
	if s.opts.StrictToken {
		return token != "" && token == d.SignToken
	}
	return token == "" || d.SignToken == "" || token == d.SignToken
}

// Sign stamps the signature into the agreement and moves the document to
// SIGNED. Any failure before the final write leaves it PENDING.
func (s *Service) Sign(ctx context.Context, id string, in SignInput) (*document.Document, error) {
	d, err := s.sign(ctx, id, in)
	if err != nil {
		metrics.SignFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}
	metrics.DocumentsSigned.Inc()
	return d, nil
}

func (s *Service) sign(ctx context.Context, id string, in SignInput) (*document.Document, error) {
	d, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.checkToken(d, in.Token) {
		return nil, ErrUnauthorized
	}
	if d.IsSigned() {
		return nil, fmt.Errorf("%w: document is already signed", ErrConflict)
	}
	sig, err := pdf.ParseSignature(in.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrValidation, err)
	}

	var lastY *float64
	base, ok := pdf.StoredPDF(d.FileURL)
	if !ok {
		b, y, err := s.renderer.RenderBase(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("render document %s: %w", d.ID, err)
		}
		base, lastY = b, &y
	}

	now := s.now()
	info := document.SignerInfoFor(d, in.SignerEmail, now)
	signed, err := s.renderer.EmbedSignature(ctx, base, sig, info, lastY)
	if errors.Is(err, pdf.ErrInvalidImage) {
		return nil, fmt.Errorf("%w: signature: %v", ErrValidation, err)
	}
	if err != nil {
		return nil, fmt.Errorf("embed signature in %s: %w", d.ID, err)
	}

	version := d.Version
	at := now.UnixMilli()
	d.Status = document.StatusSigned
	d.SignedAt = &at
	d.SignerGmail = info.Email
	d.SignerIP = in.SignerIP
	d.SignedPdfURL = pdf.EncodePDFDataURL(signed)
	if err := s.save(ctx, d, version); err != nil {
		return nil, err
	}
	logger.Infof("document %s signed by %s", d.ID, info.Email)

	if s.archiver != nil {
		if err := s.archiver.ArchiveSignedPDF(ctx, d.ID, signed); err != nil {
			logger.Errorf("archive signed pdf %s: %v", d.ID, err)
		}
	}
	return d, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "token"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "internal"
	}
}

// Delete removes a document. Only admins may delete.
func (s *Service) Delete(ctx context.Context, u *models.User, id string) error {
	if !u.IsAdmin() {
		return ErrForbidden
	}
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	logger.Infof("document %s deleted by %s", id, u.ID)
	return nil
}

// SignedPDF is either the signed file or a link to an archived copy.
type SignedPDF struct {
	Filename    string
	Data        []byte
	RedirectURL string
}

const presignExpiry = 15 * time.Minute

// Download returns the signed PDF of a document the caller can access.
func (s *Service) Download(ctx context.Context, u *models.User, id string) (*SignedPDF, error) {
	d, err := s.Get(ctx, u, id)
	if err != nil {
		return nil, err
	}
	return s.signedPDF(ctx, d, true)
}

// DownloadPublic returns the signed PDF to a client holding the sign token.
func (s *Service) DownloadPublic(ctx context.Context, id, token string) (*SignedPDF, error) {
	d, err := s.GetPublic(ctx, id, token)
	if err != nil {
		return nil, err
	}
	return s.signedPDF(ctx, d, false)
}

func (s *Service) signedPDF(ctx context.Context, d *document.Document, allowRedirect bool) (*SignedPDF, error) {
	if !d.IsSigned() {
		return nil, fmt.Errorf("%w: document is not signed", ErrNotFound)
	}
	out := &SignedPDF{Filename: d.ID + "-signed.pdf"}
	if allowRedirect && s.archiver != nil {
		u, err := s.archiver.PresignedURL(ctx, d.ID, presignExpiry)
		if err == nil {
			out.RedirectURL = u
			return out, nil
		}
		logger.Warnf("presign %s: %v", d.ID, err)
	}
	data, ok := pdf.StoredPDF(d.SignedPdfURL)
	if !ok {
		return nil, fmt.Errorf("%w: signed file is unavailable", ErrNotFound)
	}
	out.Data = data
	return out, nil
}

// VerifySigner checks that a verified identity-provider email belongs to
// the client the document was sent to.
func (s *Service) VerifySigner(ctx context.Context, id, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: token missing email", ErrValidation)
	}
	d, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	expected := strings.ToLower(d.Meta("clientEmail"))
	if expected == "" || expected != email {
		return "", &SignerMismatchError{Expected: expected}
	}
	return email, nil
}
