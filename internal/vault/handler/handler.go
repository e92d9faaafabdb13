package handler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/zewo/opsdash/internal/vault"
	"github.com/zewo/opsdash/internal/vault/service"
	"github.com/zewo/opsdash/pkg/logger"
)

// PinHeader carries the folder PIN on DELETE requests.
const PinHeader = "X-Vault-Pin"

// multipart framing allowance on top of the upload ceiling
const formOverhead = 1 << 20

type handler struct {
	svc       service.Service
	maxUpload int64
}

// RegisterVaultRoutes mounts the vault API on rg. maxUpload bounds request bodies for
// uploads; the service enforces the exact ceiling.
func RegisterVaultRoutes(rg gin.IRoutes, svc service.Service, maxUpload int64) {
	if maxUpload <= 0 {
		maxUpload = vault.DefaultMaxUploadBytes
	}
	h := &handler{svc: svc, maxUpload: maxUpload}
	rg.GET("/api/vault/items", h.list)
	rg.POST("/api/vault/folders", h.createFolder)
	rg.POST("/api/vault/folders/:id/open", h.open)
	rg.POST("/api/vault/files", h.upload)
	rg.DELETE("/api/vault/items/:id", h.remove)
	rg.GET("/api/vault/files/:id/preview", h.preview)
	rg.GET("/api/vault/files/:id/raw", h.raw)
}

// itemView is the public shape of an item. Content and PIN material never leave the server.
func itemView(it *vault.Item) gin.H {
	out := gin.H{
		"id":        it.ID,
		"name":      it.Name,
		"kind":      it.Kind,
		"parentId":  it.ParentID,
		"createdAt": it.CreatedAt,
	}
	if it.IsFolder() {
		out["protected"] = it.Protected()
	} else {
		out["sizeBytes"] = it.SizeBytes
		out["contentKind"] = it.ContentKind
	}
	return out
}

func itemViews(items []*vault.Item) []gin.H {
	out := make([]gin.H, 0, len(items))
	for _, it := range items {
		out = append(out, itemView(it))
	}
	return out
}

// writeError maps vault error codes onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var ve *vault.Error
	if !errors.As(err, &ve) {
		logger.With("path", c.FullPath()).Errorf("vault request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	status := http.StatusInternalServerError
	switch ve.Code {
	case vault.CodeValidation:
		status = http.StatusBadRequest
	case vault.CodeNotFound:
		status = http.StatusNotFound
	case vault.CodeAuth:
		status = http.StatusForbidden
	case vault.CodeThrottled:
		status = http.StatusTooManyRequests
	case vault.CodeConflict:
		status = http.StatusConflict
	}
	msg := ve.Message
	if msg == "" {
		msg = strings.ToLower(strings.ReplaceAll(string(ve.Code), "_", " "))
	}
	c.JSON(status, gin.H{"error": msg, "code": ve.Code})
}

func (h *handler) list(c *gin.Context) {
	items, err := h.svc.ListChildren(c.Request.Context(), c.Query("parentId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": itemViews(items)})
}

func (h *handler) createFolder(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		ParentID string `json:"parentId"`
		Pin      string `json:"pin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	it, err := h.svc.CreateFolder(c.Request.Context(), req.Name, req.ParentID, req.Pin)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, itemView(it))
}

func (h *handler) open(c *gin.Context) {
	var req struct {
		Pin string `json:"pin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.svc.OpenFolder(c.Request.Context(), c.Param("id"), req.Pin)
	if err != nil {
		writeError(c, err)
		return
	}
	var folder gin.H
	if view.Folder != nil {
		folder = itemView(view.Folder)
	}
	c.JSON(http.StatusOK, gin.H{"folder": folder, "path": view.Path, "children": itemViews(view.Children)})
}

type uploadRequest struct {
	Name        string `json:"name"`
	ParentID    string `json:"parentId"`
	ContentKind string `json:"contentKind"`
	// Content is standard base64 or a "data:<kind>;base64,..." URL.
	Content   string `json:"content"`
	SizeBytes *int64 `json:"sizeBytes"`
}

func (h *handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*h.maxUpload+formOverhead)

	var (
		req     uploadRequest
		content []byte
		err     error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		content, err = h.readMultipart(c, &req)
	} else {
		content, err = readJSONUpload(c, &req)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d bytes", h.maxUpload)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := req.ContentKind
	if n := vault.NormalizeKind(kind); n == "" || n == "application/octet-stream" {
		kind = mimetype.Detect(content).String()
	}
	size := int64(len(content))
	if req.SizeBytes != nil {
		size = *req.SizeBytes
	}
	it, err := h.svc.UploadFile(c.Request.Context(), req.ParentID, req.Name, kind, content, size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, itemView(it))
}

func (h *handler) readMultipart(c *gin.Context, req *uploadRequest) ([]byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("missing file field: %w", err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	// one byte past the ceiling is enough for the service to reject it
	content, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		return nil, err
	}
	req.ParentID = c.PostForm("parentId")
	req.Name = c.PostForm("name")
	if req.Name == "" {
		req.Name = fh.Filename
	}
	req.ContentKind = fh.Header.Get("Content-Type")
	return content, nil
}

func readJSONUpload(c *gin.Context, req *uploadRequest) ([]byte, error) {
	if err := c.ShouldBindJSON(req); err != nil {
		return nil, err
	}
	payload := req.Content
	if strings.HasPrefix(payload, "data:") {
		kind, data, err := parseDataURL(payload)
		if err != nil {
			return nil, err
		}
		if req.ContentKind == "" {
			req.ContentKind = kind
		}
		payload = data
	}
	content, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("content is not valid base64: %w", err)
	}
	return content, nil
}

// parseDataURL splits "data:<kind>;base64,<payload>". Only base64 payloads are accepted.
func parseDataURL(s string) (kind, payload string, err error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return "", "", errors.New("malformed data URL")
	}
	if !strings.HasSuffix(strings.ToLower(meta), ";base64") {
		return "", "", errors.New("data URL must be base64 encoded")
	}
	kind, _, _ = strings.Cut(meta, ";")
	return kind, payload, nil
}

// DataURL renders content as an RFC 2397 base64 data URL.
func DataURL(kind string, content []byte) string {
	if kind == "" {
		kind = "application/octet-stream"
	}
	kind = strings.ReplaceAll(kind, " ", "")
	return "data:" + kind + ";base64," + base64.StdEncoding.EncodeToString(content)
}

func (h *handler) remove(c *gin.Context) {
	confirm := false
	if v := c.Query("confirm"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "confirm must be a boolean"})
			return
		}
		confirm = b
	}
	out, err := h.svc.DeleteItem(c.Request.Context(), c.Param("id"), c.GetHeader(PinHeader), confirm)
	if err != nil {
		writeError(c, err)
		return
	}
	if out.ConfirmationRequired {
		c.JSON(http.StatusConflict, gin.H{"confirmationRequired": true, "descendantCount": out.DescendantCount})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": out.Removed})
}

func (h *handler) preview(c *gin.Context) {
	p, err := h.svc.PreviewFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":          p.Item.ID,
		"name":        p.Item.Name,
		"contentKind": p.ContentKind,
		"sizeBytes":   p.Item.SizeBytes,
		"viewer":      p.Viewer,
		"content":     DataURL(p.ContentKind, p.Content),
	})
}

func (h *handler) raw(c *gin.Context) {
	p, err := h.svc.PreviewFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	disposition := "inline"
	if p.Viewer == vault.ViewerBinary {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": p.Item.Name}))
	c.Header("X-Content-Type-Options", "nosniff")
	kind := p.ContentKind
	if kind == "" {
		kind = "application/octet-stream"
	}
	c.Data(http.StatusOK, kind, p.Content)
}
