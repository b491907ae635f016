package tokens

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/signflow/signflow-server/internal/config"
	"github.com/signflow/signflow-server/internal/models"
)

func testConfig(secret string) *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = secret
	return cfg
}

func TestGenerateAccessToken_ValidAndClaims(t *testing.T) {
	cfg := testConfig("test-secret-32-bytes-should-be-long-enough")

	u := &models.User{ID: "user-123", Role: models.RoleAgent, Email: "test@example.com"}
	tokenStr, err := GenerateAccessToken(cfg, u, 2*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	claims, err := ParseAccessToken(cfg, tokenStr)
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if claims.Subject != u.ID {
		t.Fatalf("unexpected sub claim: got=%v want=%v", claims.Subject, u.ID)
	}
	if claims.Email != u.Email || claims.Role != u.Role {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if time.Until(claims.ExpiresAt) <= 0 {
		t.Fatalf("expected expiry in the future, got %v", claims.ExpiresAt)
	}
}

func TestGenerateAccessToken_Expiry(t *testing.T) {
	cfg := testConfig("another-secret-32-bytes-longgggg")
	u := &models.User{ID: "u2", Email: "x@x"}
	tokenStr, err := GenerateAccessToken(cfg, u, -time.Second)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}
	if _, err := ParseAccessToken(cfg, tokenStr); err == nil {
		t.Fatalf("expected token parse to fail after expiry")
	}
}

func TestParseToken_WrongSecretFails(t *testing.T) {
	cfg := testConfig("secret-one-32-bytes-xxxxxxxxxxxxxxxx")
	u := &models.User{ID: "u3", Email: "bob@example.com"}
	tokenStr, err := GenerateAccessToken(cfg, u, 2*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}
	if _, err := ParseAccessToken(testConfig("different-secret-xxxxxxxxxxxxxxxx"), tokenStr); err == nil {
		t.Fatalf("expected parse to fail with wrong secret")
	}
}

func TestParseToken_Malformed(t *testing.T) {
	if _, err := ParseAccessToken(testConfig("x"), "not.a.jwt"); err == nil {
		t.Fatalf("expected parse to fail for malformed token")
	}
}

func TestParseToken_AlgNoneRejected(t *testing.T) {
	payload := `{"sub":"u-none","exp":9999999999}`
	headerEnc := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	payloadEnc := base64.RawURLEncoding.EncodeToString([]byte(payload))
	tok := headerEnc + "." + payloadEnc + "."
	if _, err := ParseAccessToken(testConfig("x"), tok); err == nil {
		t.Fatalf("expected parse to reject alg=none token")
	}
}

func TestParseToken_MissingExpiryRejected(t *testing.T) {
	cfg := testConfig("no-exp-secret-32-bytes-xxxxxxxxxxx")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}).SignedString([]byte(cfg.JWT.Secret))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAccessToken(cfg, tok); err == nil {
		t.Fatalf("expected token without exp to be rejected")
	}
}

func TestParseToken_TamperedPayload(t *testing.T) {
	cfg := testConfig("tamper-test-secret-32-bytes-xxxxxxx")
	u := &models.User{ID: "user-t", Email: "t@example.com"}
	tokenStr, err := GenerateAccessToken(cfg, u, 5*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token parts")
	}
	payloadBytes, _ := base64.RawURLEncoding.DecodeString(parts[1])
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(strings.Replace(string(payloadBytes), "user-t", "attacker", 1)))
	if _, err := ParseAccessToken(cfg, strings.Join(parts, ".")); err == nil {
		t.Fatalf("expected signature verification to fail for tampered token")
	}
}
