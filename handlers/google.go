package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/signflow/signflow-server/internal/document/service"
	"github.com/signflow/signflow-server/internal/oidc"
	"github.com/signflow/signflow-server/pkg/logger"
)

type oauthState struct {
	DocID string `json:"docId"`
}

func encodeState(docID string) string {
	b, _ := json.Marshal(oauthState{DocID: docID})
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeState(s string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return "", err
	}
	var st oauthState
	if err := json.Unmarshal(b, &st); err != nil {
		return "", err
	}
	if st.DocID == "" {
		return "", errors.New("missing docId in state")
	}
	return st.DocID, nil
}

// GoogleVerify checks a Google id token from the signing page against the
// client email of the document.
func (h *AuthHandler) GoogleVerify(c *gin.Context) {
	if h.google == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Google OAuth not configured"})
		return
	}
	var req struct {
		IDToken string `json:"idToken"`
		DocID   string `json:"docId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.IDToken == "" || req.DocID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "idToken and docId are required"})
		return
	}
	email, err := h.google.VerifiedEmail(c.Request.Context(), req.IDToken)
	if errors.Is(err, oidc.ErrMissingEmail) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Google token missing email"})
		return
	}
	if err != nil {
		logger.Warnf("google-verify: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Google verification failed"})
		return
	}
	email, err = h.docs.VerifySigner(c.Request.Context(), req.DocID, email)
	var mismatch *service.SignerMismatchError
	switch {
	case errors.As(err, &mismatch):
		c.JSON(http.StatusForbidden, gin.H{"message": mismatch.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Document not found"})
	case err != nil:
		logger.Errorf("google-verify: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Google verification failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true, "email": email})
	}
}

// GoogleLogin redirects the signer to Google's consent page.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if !h.google.CodeFlowEnabled() {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Google OAuth not configured"})
		return
	}
	docID := c.Query("docId")
	if docID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "docId is required"})
		return
	}
	c.Redirect(http.StatusFound, h.google.AuthCodeURL(encodeState(docID)))
}

// GoogleCallback finishes the code flow and reports the result to the
// signing page that opened the popup.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if !h.google.CodeFlowEnabled() {
		c.String(http.StatusInternalServerError, "Google OAuth not configured")
		return
	}
	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		c.String(http.StatusBadRequest, "Missing code or state")
		return
	}
	docID, err := decodeState(state)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid state")
		return
	}
	ctx := c.Request.Context()
	email, err := h.google.ExchangeEmail(ctx, code)
	if err != nil {
		logger.Warnf("google-callback: %v", err)
		c.String(http.StatusBadRequest, "Google login failed")
		return
	}

	ok, message := true, ""
	verified, err := h.docs.VerifySigner(ctx, docID, email)
	var mismatch *service.SignerMismatchError
	switch {
	case errors.As(err, &mismatch):
		ok, message = false, mismatch.Error()
	case errors.Is(err, service.ErrNotFound):
		c.String(http.StatusNotFound, "Document not found")
		return
	case err != nil:
		logger.Errorf("google-callback: %v", err)
		c.String(http.StatusInternalServerError, "Google login failed")
		return
	}
	if !ok {
		verified = ""
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(popupResult(h.cfg.Server.FrontendURL, ok, verified, message)))
}

// popupResult renders the page that posts the login result to the opener.
// json.Marshal escapes <, > and & so the values are safe inside <script>.
func popupResult(frontendURL string, ok bool, email, message string) string {
	data, _ := json.Marshal(map[string]interface{}{
		"type":    "google-oauth-result",
		"ok":      ok,
		"email":   email,
		"message": message,
	})
	origin, _ := json.Marshal(strings.TrimRight(frontendURL, "/"))
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Google Login</title></head>
<body>
<script>
  (function() {
    try {
      var data = %s;
      if (window.opener && !window.opener.closed) {
        window.opener.postMessage(data, %s);
      }
    } catch (e) {}
    window.close();
  })();
</script>
<p>You can close this window.</p>
</body></html>`, data, origin)
}
