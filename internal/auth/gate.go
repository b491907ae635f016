package auth

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/signflow/signflow-server/internal/config"
	"github.com/signflow/signflow-server/internal/models"
	"github.com/signflow/signflow-server/internal/tokens"
	"github.com/signflow/signflow-server/pkg/logger"
)

var bearerRe = regexp.MustCompile(`(?i)^Bearer\s+(\S+)\s*$`)

// UserLookup finds an account by id with an email fallback.
type UserLookup interface {
	Resolve(ctx context.Context, id, email string) (*models.User, error)
}

// RevocationChecker reports whether an access token was revoked at logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Gate turns an Authorization header into an active user.
type Gate struct {
	cfg     *config.Config
	users   UserLookup
	revoked RevocationChecker
}

func NewGate(cfg *config.Config, users UserLookup, revoked RevocationChecker) *Gate {
	return &Gate{cfg: cfg, users: users, revoked: revoked}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	m := bearerRe.FindStringSubmatch(strings.TrimSpace(header))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Resolve returns (nil, nil) whenever the caller is not authenticated:
// missing or malformed header, bad or expired token, revoked token, unknown
// or inactive user. A non-nil error means a backing store failed.
func (g *Gate) Resolve(ctx context.Context, header string) (*models.User, error) {
	raw, ok := BearerToken(header)
	if !ok {
		return nil, nil
	}
	claims, err := tokens.ParseAccessToken(g.cfg, raw)
	if err != nil {
		logger.Debugf("auth: rejecting token: %v", err)
		return nil, nil
	}
	if g.revoked != nil {
		revoked, err := g.revoked.IsRevoked(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, nil
		}
	}
	u, err := g.users.Resolve(ctx, claims.Subject, claims.Email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if u == nil || !u.Active {
		return nil, nil
	}
	return u, nil
}
