package document

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// NewID returns a fresh document identifier.
func NewID() string {
	return "doc-" + uuid.NewString()
}

// NewSignToken returns an unguessable capability token for the signing link.
func NewSignToken() string {
	return "sign-" + ksuid.New().String()
}
