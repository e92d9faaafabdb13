package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the dashboard API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>opsdash API</title>
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

// Minimal OpenAPI document for the gate and vault endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "opsdash", "version": "v0.1.0" },
  "components": {
    "securitySchemes": {
      "bearer": { "type": "http", "scheme": "bearer" },
      "cookie": { "type": "apiKey", "in": "cookie", "name": "opsdash_session" }
    }
  },
  "security": [ { "bearer": [] }, { "cookie": [] } ],
  "paths": {
    "/auth/login": {
      "post": {
        "summary": "Exchange the passphrase for a session token",
        "security": [],
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"passphrase":{"type":"string"}}}}}},
        "responses": { "200": { "description": "token returned and cookie set" }, "401": { "description": "wrong passphrase" }, "429": { "description": "too many attempts" } }
      }
    },
    "/auth/logout": {
      "post": { "summary": "Revoke the current session", "responses": { "200": { "description": "logged out" } } }
    },
    "/api/vault/items": {
      "get": {
        "summary": "List the children of a folder (root when parentId is absent)",
        "parameters": [ { "name": "parentId", "in": "query", "schema": { "type": "string" } } ],
        "responses": { "200": { "description": "items" }, "404": { "description": "parent not found" } }
      }
    },
    "/api/vault/folders": {
      "post": {
        "summary": "Create a folder, optionally protected by a 4-digit PIN",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"name":{"type":"string"},"parentId":{"type":"string"},"pin":{"type":"string"}}}}}},
        "responses": { "201": { "description": "folder created" }, "400": { "description": "invalid name or PIN" }, "404": { "description": "parent not found" } }
      }
    },
    "/api/vault/files": {
      "post": {
        "summary": "Upload a file (multipart field 'file' or JSON with base64 content)",
        "requestBody": { "content": {
          "multipart/form-data": { "schema": {"type":"object","properties":{"file":{"type":"string","format":"binary"},"parentId":{"type":"string"}}}},
          "application/json": { "schema": {"type":"object","properties":{"name":{"type":"string"},"parentId":{"type":"string"},"contentKind":{"type":"string"},"content":{"type":"string","format":"byte"}}}}
        }},
        "responses": { "201": { "description": "file stored" }, "400": { "description": "invalid upload" }, "404": { "description": "parent not found" } }
      }
    },
    "/api/vault/folders/{id}/open": {
      "post": {
        "summary": "Open a folder, supplying its PIN when protected",
        "parameters": [ { "name": "id", "in": "path", "required": true, "schema": { "type": "string" } } ],
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"pin":{"type":"string"}}}}}},
        "responses": { "200": { "description": "folder, path and children" }, "403": { "description": "wrong PIN" }, "404": { "description": "not found" }, "429": { "description": "too many PIN attempts" } }
      }
    },
    "/api/vault/items/{id}": {
      "delete": {
        "summary": "Delete an item; folders cascade to every descendant",
        "parameters": [
          { "name": "id", "in": "path", "required": true, "schema": { "type": "string" } },
          { "name": "confirm", "in": "query", "schema": { "type": "boolean" } },
          { "name": "X-Vault-Pin", "in": "header", "schema": { "type": "string" } }
        ],
        "responses": { "200": { "description": "removed" }, "403": { "description": "wrong PIN" }, "404": { "description": "not found" }, "409": { "description": "confirmation required for a non-empty folder" } }
      }
    },
    "/api/vault/files/{id}/preview": {
      "get": {
        "summary": "Preview a file as a data URL with a viewer hint",
        "parameters": [ { "name": "id", "in": "path", "required": true, "schema": { "type": "string" } } ],
        "responses": { "200": { "description": "preview" }, "404": { "description": "not found" } }
      }
    },
    "/api/vault/files/{id}/raw": {
      "get": {
        "summary": "Download the stored bytes",
        "parameters": [ { "name": "id", "in": "path", "required": true, "schema": { "type": "string" } } ],
        "responses": { "200": { "description": "file content" }, "404": { "description": "not found" } }
      }
    },
    "/health": { "get": { "summary": "Liveness check", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
