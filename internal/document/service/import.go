package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/signflow/signflow-server/internal/document"
	"github.com/signflow/signflow-server/internal/document/repository"
	"github.com/signflow/signflow-server/internal/models"
	"github.com/signflow/signflow-server/pkg/logger"
	"github.com/signflow/signflow-server/pkg/metrics"
)

// Import outcomes.
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// ImportResult reports what happened to one imported item.
type ImportResult struct {
	ItemID  string `json:"itemId"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// DecodeImport reads an export file: either a bare array or
// {"documents": [...]}. Entries that are not objects come back as nil and
// are skipped by Import.
func DecodeImport(r io.Reader) ([]map[string]interface{}, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var list []interface{}
	if err := json.Unmarshal(raw, &list); err != nil {
		var wrapped struct {
			Documents []interface{} `json:"documents"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, err
		}
		list = wrapped.Documents
	}
	out := make([]map[string]interface{}, len(list))
	for i, v := range list {
		m, _ := v.(map[string]interface{})
		out[i] = m
	}
	return out, nil
}

// Import merges exported records into the store, one at a time. A failing
// item does not stop the rest.
func (s *Service) Import(ctx context.Context, u *models.User, items []map[string]interface{}) ([]ImportResult, error) {
	if !u.IsAdmin() {
		return nil, ErrForbidden
	}
	out := make([]ImportResult, 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res := s.importOne(ctx, i, item)
		metrics.ImportItems.WithLabelValues(res.Outcome).Inc()
		out = append(out, res)
	}
	logger.Infof("import by %s: %d items", u.ID, len(items))
	return out, nil
}

func (s *Service) importOne(ctx context.Context, idx int, item map[string]interface{}) ImportResult {
	if len(item) == 0 {
		return ImportResult{ItemID: fmt.Sprintf("#%d", idx), Outcome: OutcomeSkipped, Error: "empty item"}
	}
	d := document.FromRecord(item, s.now())
	if d.ID == "" {
		d.ID = document.NewID()
	}
	if d.SignToken == "" {
		d.SignToken = document.NewSignToken()
	}
	res := ImportResult{ItemID: d.ID}

	existing, err := s.repo.Get(ctx, d.ID)
	switch {
	case err == nil:
		// keep the stored key and invalidate concurrent readers
		d.StoreKey = existing.StoreKey
		d.Version = existing.Version + 1
		if existing.IsSigned() {
			keepSignature(d, existing)
		}
	case errors.Is(err, repository.ErrNotFound):
		d.Version = 0
	default:
		res.Outcome, res.Error = OutcomeFailed, "lookup failed"
		logger.Errorf("import %s: %v", d.ID, err)
		return res
	}

	created, err := s.repo.Upsert(ctx, d)
	if err != nil {
		res.Outcome, res.Error = OutcomeFailed, "write failed"
		logger.Errorf("import %s: %v", d.ID, err)
		return res
	}
	if created {
		res.Outcome = OutcomeCreated
	} else {
		res.Outcome = OutcomeUpdated
	}
	return res
}

// keepSignature carries the signing outcome of a stored document over to
// its imported replacement. A signed document never returns to PENDING.
func keepSignature(d, signed *document.Document) {
	d.Status = document.StatusSigned
	d.SignedAt = signed.SignedAt
	d.SignerGmail = signed.SignerGmail
	d.SignerIP = signed.SignerIP
	d.SignedPdfURL = signed.SignedPdfURL
}
