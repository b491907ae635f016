package oidc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/signflow/signflow-server/internal/config"
)

var (
	ErrNotConfigured = errors.New("google oauth not configured")
	ErrMissingEmail  = errors.New("id token missing email")
	ErrMissingToken  = errors.New("token response missing id_token")
)

// IDToken is a minimal interface for token payloads that allows extracting claims
// It is satisfied by *oidc.IDToken and by test fakes.
type IDToken interface {
	Claims(v interface{}) error
}

// TokenVerifier checks a raw ID token and exposes its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (IDToken, error)
}

// Verifier wraps the OIDC provider and token verifier
type Verifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewVerifier creates a new OIDC verifier for the given issuer and client ID
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return &Verifier{provider: provider, verifier: verifier}, nil
}

func (v *Verifier) Verify(ctx context.Context, raw string) (IDToken, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}

// Google verifies signer identities against Google accounts.
type Google struct {
	verifier TokenVerifier
	oauth    *oauth2.Config
}

// NewGoogle discovers the provider and prepares the authorization code flow.
// With GOOGLE_INSECURE_SKIP_VERIFY set, id token signatures are not checked.
func NewGoogle(ctx context.Context, cfg config.GoogleConfig) (*Google, error) {
	if cfg.ClientID == "" {
		return nil, ErrNotConfigured
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}
	if cfg.InsecureSkipVerify {
		oc.Endpoint = oauth2.Endpoint{
			AuthURL:  strings.TrimRight(cfg.Issuer, "/") + "/o/oauth2/v2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		}
		return NewGoogleWithVerifier(NewInsecureVerifier(), oc), nil
	}
	v, err := NewVerifier(ctx, cfg.Issuer, cfg.ClientID)
	if err != nil {
		return nil, err
	}
	oc.Endpoint = v.provider.Endpoint()
	return NewGoogleWithVerifier(v, oc), nil
}

func NewGoogleWithVerifier(v TokenVerifier, oc *oauth2.Config) *Google {
	return &Google{verifier: v, oauth: oc}
}

// CodeFlowEnabled reports whether the redirect login can be used.
func (g *Google) CodeFlowEnabled() bool {
	return g != nil && g.oauth != nil && g.oauth.ClientSecret != "" && g.oauth.RedirectURL != ""
}

// VerifiedEmail verifies rawIDToken and returns its email, lower-cased.
func (g *Google) VerifiedEmail(ctx context.Context, rawIDToken string) (string, error) {
	if g == nil || g.verifier == nil {
		return "", ErrNotConfigured
	}
	tok, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return "", fmt.Errorf("verify id token: %w", err)
	}
	var claims struct {
		Email         string      `json:"email"`
		EmailVerified interface{} `json:"email_verified"`
	}
	if err := tok.Claims(&claims); err != nil {
		return "", fmt.Errorf("decode claims: %w", err)
	}
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return "", ErrMissingEmail
	}
	// Google sends a bool; some issuers send the string form.
	if v, ok := claims.EmailVerified.(bool); ok && !v {
		return "", fmt.Errorf("email %s is not verified", email)
	}
	if s, ok := claims.EmailVerified.(string); ok && strings.EqualFold(s, "false") {
		return "", fmt.Errorf("email %s is not verified", email)
	}
	return email, nil
}

// AuthCodeURL is the Google consent URL carrying state.
func (g *Google) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("include_granted_scopes", "true"))
}

// ExchangeEmail trades an authorization code for tokens and returns the
// verified email of the id token.
func (g *Google) ExchangeEmail(ctx context.Context, code string) (string, error) {
	if !g.CodeFlowEnabled() {
		return "", ErrNotConfigured
	}
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return "", ErrMissingToken
	}
	return g.VerifiedEmail(ctx, raw)
}
