package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerHTML))
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>signflow API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "signflow", "version": "v1.0.0" },
  "components": { "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } } },
  "paths": {
    "/api/auth/register": {
      "post": { "summary": "Create an agent account (admins may create admins)", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"},"name":{"type":"string"},"role":{"type":"string"}}}}}}, "responses": { "201": { "description": "user created" }, "400": { "description": "missing fields or duplicate email" } } }
    },
    "/api/auth/login": {
      "post": { "summary": "Email and password login", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "200": { "description": "token, refreshToken, expiresIn, user" }, "401": { "description": "invalid credentials" } } }
    },
    "/api/auth/me": {
      "get": { "summary": "Current user", "security": [{"bearer": []}], "responses": { "200": { "description": "user" }, "401": { "description": "unauthorized" } } }
    },
    "/api/auth/refresh": {
      "post": { "summary": "Rotate a refresh token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refreshToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "new token pair" }, "401": { "description": "invalid refresh" } } }
    },
    "/api/auth/logout": {
      "post": { "summary": "Revoke the access token and drop the refresh session", "responses": { "200": { "description": "logged out" } } }
    },
    "/api/auth/google-verify": {
      "post": { "summary": "Check a Google id token against a document's client email", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"idToken":{"type":"string"},"docId":{"type":"string"}}}}}}, "responses": { "200": { "description": "ok and verified email" }, "403": { "description": "email mismatch" }, "404": { "description": "document not found" } } }
    },
    "/api/auth/google-login": {
      "get": { "summary": "Redirect to Google consent", "parameters": [{"name":"docId","in":"query","required":true,"schema":{"type":"string"}}], "responses": { "302": { "description": "redirect" } } }
    },
    "/api/auth/google-callback": {
      "get": { "summary": "OAuth callback; posts the result to the opener window", "responses": { "200": { "description": "HTML page" } } }
    },
    "/api/users": {
      "get": { "summary": "List accounts (admin)", "security": [{"bearer": []}], "responses": { "200": { "description": "users" } } }
    },
    "/api/users/{id}/toggle": {
      "patch": { "summary": "Activate or deactivate an account (admin)", "security": [{"bearer": []}], "responses": { "200": { "description": "new active flag" }, "404": { "description": "not found" } } }
    },
    "/api/users/{id}": {
      "delete": { "summary": "Delete an agent account (admin)", "security": [{"bearer": []}], "responses": { "200": { "description": "deleted" }, "400": { "description": "admin accounts cannot be deleted" } } }
    },
    "/api/users/profile": {
      "post": { "summary": "Update name and stored signature", "security": [{"bearer": []}], "responses": { "200": { "description": "user" } } }
    },
    "/api/documents": {
      "get": { "summary": "List documents visible to the caller", "security": [{"bearer": []}], "parameters": [{"name":"status","in":"query","schema":{"type":"string"}},{"name":"agentId","in":"query","schema":{"type":"string"}},{"name":"clientId","in":"query","schema":{"type":"string"}}], "responses": { "200": { "description": "documents" } } },
      "post": { "summary": "Create a document and email the signing link", "security": [{"bearer": []}], "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"title":{"type":"string"},"fileUrl":{"type":"string"},"metadata":{"type":"object"}}}}}}, "responses": { "201": { "description": "document, link, notified" } } }
    },
    "/api/documents/stats": {
      "get": { "summary": "Total, pending and signed counts", "security": [{"bearer": []}], "responses": { "200": { "description": "stats" } } }
    },
    "/api/documents/import": {
      "post": { "summary": "Bulk upsert documents (admin)", "security": [{"bearer": []}], "responses": { "200": { "description": "per-item results" } } }
    },
    "/api/documents/{id}": {
      "get": { "summary": "Fetch an owned document", "security": [{"bearer": []}], "responses": { "200": { "description": "document" }, "403": { "description": "not owner" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete a document (admin)", "security": [{"bearer": []}], "responses": { "200": { "description": "deleted" } } }
    },
    "/api/documents/{id}/public": {
      "get": { "summary": "Fetch a document with its signing token", "parameters": [{"name":"token","in":"query","required":true,"schema":{"type":"string"}}], "responses": { "200": { "description": "document" }, "401": { "description": "invalid token" } } }
    },
    "/api/documents/{id}/resend": {
      "post": { "summary": "Rotate the signing token and resend the link", "security": [{"bearer": []}], "responses": { "201": { "description": "document, link, notified" }, "409": { "description": "already signed" } } }
    },
    "/api/documents/{id}/sign": {
      "post": { "summary": "Sign with a drawn signature", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"dataUrl":{"type":"string"},"token":{"type":"string"},"signerEmail":{"type":"string"}}}}}}, "responses": { "200": { "description": "signed document" }, "400": { "description": "invalid signature" }, "401": { "description": "invalid token" }, "409": { "description": "already signed" } } }
    },
    "/api/documents/{id}/download": {
      "get": { "summary": "Download the signed PDF", "security": [{"bearer": []}], "responses": { "200": { "description": "application/pdf" }, "302": { "description": "redirect to archived copy" } } }
    },
    "/api/documents/{id}/public/download": {
      "get": { "summary": "Download the signed PDF with the signing token", "responses": { "200": { "description": "application/pdf" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "text exposition" } } } }
  }
}`
