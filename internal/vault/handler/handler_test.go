package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/zewo/opsdash/internal/vault"
	"github.com/zewo/opsdash/internal/vault/service"
	"golang.org/x/crypto/bcrypt"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	g := gin.New()
	svc := service.NewMemoryService(service.Options{
		Guard:  vault.NewGuard(nil, bcrypt.MinCost),
		Limits: vault.NewLimits(1024),
	})
	RegisterVaultRoutes(g, svc, 1024)
	return g
}

func call(g http.Handler, method, path, body string, hdr ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestVaultHandler_FolderLifecycle(t *testing.T) {
	g := newRouter(t)

	w, body := call(g, http.MethodPost, "/api/vault/folders", `{"name":"Invoices","pin":"1234"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := body["id"].(string)
	require.Equal(t, true, body["protected"])
	require.NotContains(t, w.Body.String(), "pin")

	// wrong PIN: 403 and nothing about the contents
	w, body = call(g, http.MethodPost, "/api/vault/folders/"+id+"/open", `{"pin":"0000"}`)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.NotContains(t, body, "children")

	w, body = call(g, http.MethodPost, "/api/vault/folders/"+id+"/open", `{"pin":"1234"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["path"], 1)
	require.Empty(t, body["children"])

	w, body = call(g, http.MethodGet, "/api/vault/items", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body["items"], 1)

	w, _ = call(g, http.MethodDelete, "/api/vault/items/"+id, "", PinHeader, "9999")
	require.Equal(t, http.StatusForbidden, w.Code)
	w, body = call(g, http.MethodDelete, "/api/vault/items/"+id, "", PinHeader, "1234")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(1), body["removed"])
}

func TestVaultHandler_Validation(t *testing.T) {
	g := newRouter(t)
	w, body := call(g, http.MethodPost, "/api/vault/folders", `{"name":"x","pin":"12"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "VALIDATION", body["code"])

	w, _ = call(g, http.MethodPost, "/api/vault/folders", `{"name":"x","parentId":"nope"}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	w, _ = call(g, http.MethodGet, "/api/vault/items?parentId=nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	w, _ = call(g, http.MethodDelete, "/api/vault/items/nope?confirm=maybe", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVaultHandler_JSONUploadAndPreview(t *testing.T) {
	g := newRouter(t)
	content := base64.StdEncoding.EncodeToString([]byte("hello vault"))

	w, body := call(g, http.MethodPost, "/api/vault/files", `{"name":"hello.txt","contentKind":"text/plain","content":"`+content+`"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, float64(11), body["sizeBytes"])
	id := body["id"].(string)

	w, body = call(g, http.MethodGet, "/api/vault/files/"+id+"/preview", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text", body["viewer"])
	require.Equal(t, "data:text/plain;base64,"+content, body["content"])

	w, _ = call(g, http.MethodGet, "/api/vault/files/"+id+"/raw", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "hello vault", w.Body.String())
	require.Contains(t, w.Header().Get("Content-Disposition"), "inline")

	// data URL content carries its own kind
	w, body = call(g, http.MethodPost, "/api/vault/files", `{"name":"d.json","content":"data:application/json;base64,`+base64.StdEncoding.EncodeToString([]byte(`{"a":1}`))+`"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "application/json", body["contentKind"])
}

func TestVaultHandler_UploadRejections(t *testing.T) {
	g := newRouter(t)
	exe := base64.StdEncoding.EncodeToString([]byte("MZ\x90\x00"))
	w, _ := call(g, http.MethodPost, "/api/vault/files", `{"name":"a.exe","contentKind":"application/x-msdownload","content":"`+exe+`"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	big := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("a"), 2048))
	w, _ = call(g, http.MethodPost, "/api/vault/files", `{"name":"big.txt","contentKind":"text/plain","content":"`+big+`"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = call(g, http.MethodPost, "/api/vault/files", `{"name":"bad.txt","content":"***"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, body := call(g, http.MethodGet, "/api/vault/items", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, body["items"])
}

func TestVaultHandler_MultipartUploadSniffsKind(t *testing.T) {
	g := newRouter(t)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "dot.png")
	require.NoError(t, err)
	_, err = fw.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/vault/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "image/png", body["contentKind"])
	require.Equal(t, "dot.png", body["name"])
	require.Equal(t, float64(len(png)), body["sizeBytes"])
}

func TestVaultHandler_CascadeNeedsConfirmation(t *testing.T) {
	g := newRouter(t)
	_, a := call(g, http.MethodPost, "/api/vault/folders", `{"name":"A"}`)
	aid := a["id"].(string)
	_, b := call(g, http.MethodPost, "/api/vault/folders", `{"name":"B","parentId":"`+aid+`"}`)
	bid := b["id"].(string)
	w, _ := call(g, http.MethodPost, "/api/vault/folders", `{"name":"C","parentId":"`+bid+`"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := call(g, http.MethodDelete, "/api/vault/items/"+aid, "")
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, true, body["confirmationRequired"])
	require.Equal(t, float64(2), body["descendantCount"])

	w, body = call(g, http.MethodDelete, "/api/vault/items/"+aid+"?confirm=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(3), body["removed"])

	w, _ = call(g, http.MethodGet, "/api/vault/files/"+aid+"/preview", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestVaultHandler_OpenWithoutBody(t *testing.T) {
	g := newRouter(t)
	_, f := call(g, http.MethodPost, "/api/vault/folders", `{"name":"plain"}`)
	w, body := call(g, http.MethodPost, "/api/vault/folders/"+f["id"].(string)+"/open", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "plain", body["folder"].(map[string]interface{})["name"])
}

func TestParseDataURL(t *testing.T) {
	kind, payload, err := parseDataURL("data:text/plain;charset=utf-8;base64,aGk=")
	require.NoError(t, err)
	require.Equal(t, "text/plain", kind)
	require.Equal(t, "aGk=", payload)

	_, _, err = parseDataURL("data:text/plain,hi")
	require.Error(t, err)
	_, _, err = parseDataURL("data:nocomma")
	require.Error(t, err)
	require.Equal(t, "data:application/octet-stream;base64,AQI=", DataURL("", []byte{1, 2}))
	require.Equal(t, "data:Text/Plain;charset=utf-8;base64,aGk=", DataURL("Text/Plain; charset=utf-8", []byte("hi")))
}
