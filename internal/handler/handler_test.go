package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/imagevault/internal/config"
	"github.com/templui/imagevault/internal/ctxkeys"
	"github.com/templui/imagevault/internal/repository"
	"github.com/templui/imagevault/internal/service"
	"github.com/templui/imagevault/internal/storage"
	"github.com/templui/imagevault/internal/thumb"
	"golang.org/x/oauth2"
)

const completeConfig = `{"dbHost":"h","dbName":"d","dbUser":"u"}`

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler().Health(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]any{"status": "ok"}, decode(t, rec))
}

// Setup

func newSetupHandler(t *testing.T) (*setupHandler, *service.SetupService) {
	t.Helper()
	setupService := service.NewSetupService(filepath.Join(t.TempDir(), "config.json"))
	return NewSetupHandler(setupService), setupService
}

func TestConfigStatus(t *testing.T) {
	h, setupService := newSetupHandler(t)

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/config/status", nil))
	assert.Equal(t, map[string]any{"present": false, "complete": false}, decode(t, rec))

	require.NoError(t, os.WriteFile(setupService.Path(), []byte("{oops"), 0o644))
	rec = httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/config/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"present": true, "complete": false, "error": "Invalid JSON in config.json"}, decode(t, rec))
}

func TestConfigSave(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		error  string
	}{
		{"null body", "null", http.StatusBadRequest, "Invalid JSON body"},
		{"malformed", `{"dbHost":`, http.StatusBadRequest, "Invalid JSON"},
		{"empty", "", http.StatusBadRequest, "Invalid JSON"},
		{"wrong type", `{"dbPort":"abc"}`, http.StatusBadRequest, "Invalid JSON"},
		{"valid", completeConfig, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, setupService := newSetupHandler(t)

			rec := httptest.NewRecorder()
			h.Save(rec, httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader(tt.body)))

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			if tt.error != "" {
				assert.Equal(t, tt.error, body["error"])
				assert.NoFileExists(t, setupService.Path())
				return
			}

			assert.Equal(t, true, body["saved"])
			assert.Equal(t, service.SetupStatus{Present: true, Complete: true}, setupService.Status())
		})
	}
}

func TestConfigSaveMalformedIncludesDetail(t *testing.T) {
	h, _ := newSetupHandler(t)

	rec := httptest.NewRecorder()
	h.Save(rec, httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader("{bad")))

	body := decode(t, rec)
	assert.NotEmpty(t, body["detail"])
}

// Auth

type authFixture struct {
	handler *authHandler
	auth    *service.AuthService
	setup   *service.SetupService
}

func newAuthFixture(t *testing.T, googleConfigured bool) *authFixture {
	t.Helper()
	cfg := &config.Config{AppURL: "http://localhost:5080"}
	if googleConfigured {
		cfg.GoogleClientID = "client-id"
		cfg.GoogleClientSecret = "client-secret"
	}

	auth := service.NewAuthService("secret", time.Hour, false)
	setup := service.NewSetupService(filepath.Join(t.TempDir(), "config.json"))
	return &authFixture{
		handler: NewAuthHandler(auth, setup, cfg),
		auth:    auth,
		setup:   setup,
	}
}

func (f *authFixture) completeSetup(t *testing.T) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.setup.Path(), []byte(completeConfig), 0o644))
}

func sessionFrom(t *testing.T, f *authFixture, rec *httptest.ResponseRecorder) *service.Session {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == service.SessionCookieName {
			session, err := f.auth.VerifySession(c.Value)
			require.NoError(t, err)
			return session
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestLoginUnavailable(t *testing.T) {
	t.Run("setup missing", func(t *testing.T) {
		f := newAuthFixture(t, true)
		rec := httptest.NewRecorder()
		f.handler.Login(rec, httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("setup incomplete", func(t *testing.T) {
		f := newAuthFixture(t, true)
		require.NoError(t, os.WriteFile(f.setup.Path(), []byte(`{"dbHost":"h"}`), 0o644))
		rec := httptest.NewRecorder()
		f.handler.Login(rec, httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("google not configured", func(t *testing.T) {
		f := newAuthFixture(t, false)
		f.completeSetup(t)
		rec := httptest.NewRecorder()
		f.handler.Login(rec, httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestLoginRedirectsToGoogle(t *testing.T) {
	f := newAuthFixture(t, true)
	f.completeSetup(t)

	rec := httptest.NewRecorder()
	f.handler.Login(rec, httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	assert.Contains(t, location, "accounts.google.com")
	assert.Contains(t, location, "client_id=client-id")
	assert.Contains(t, location, "redirect_uri=http%3A%2F%2Flocalhost%3A5080%2Fapi%2Fauth%2Fcallback%2Fgoogle")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, oauthStateCookie, cookies[0].Name)
	assert.Contains(t, location, "state="+cookies[0].Value)
}

func newGoogleStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Ada Lovelace","email":"Ada@Example.com","picture":"https://img/ada.png"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func callbackRequest(state, cookieState, code string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, GoogleCallbackPath+"?state="+state+"&code="+code, nil)
	if cookieState != "" {
		req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: cookieState})
	}
	return req
}

func TestGoogleCallback(t *testing.T) {
	f := newAuthFixture(t, true)
	srv := newGoogleStub(t)
	f.handler.googleOAuthConfig.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	f.handler.userInfoURL = srv.URL + "/userinfo"

	t.Run("success", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.GoogleCallback(rec, callbackRequest("s1", "s1", "good-code"))

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))

		session := sessionFrom(t, f, rec)
		assert.Equal(t, "Ada Lovelace", session.User.Name)
		assert.Equal(t, "ada@example.com", session.User.Email)
		assert.Equal(t, "https://img/ada.png", session.User.Picture)
		assert.Equal(t, "google", session.User.Provider)
	})

	t.Run("state mismatch", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.GoogleCallback(rec, callbackRequest("s1", "other", "good-code"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing state cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.GoogleCallback(rec, callbackRequest("s1", "", "good-code"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("exchange fails", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.GoogleCallback(rec, callbackRequest("s1", "s1", "bad-code"))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		for _, c := range rec.Result().Cookies() {
			assert.NotEqual(t, service.SessionCookieName, c.Name)
		}
	})
}

func TestMeAndLogout(t *testing.T) {
	f := newAuthFixture(t, false)

	rec := httptest.NewRecorder()
	f.handler.Me(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req = req.WithContext(ctxkeys.WithUser(req.Context(), service.DevUser()))
	rec = httptest.NewRecorder()
	f.handler.Me(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"name": "Dev User", "email": "dev@example.com", "picture": ""}, decode(t, rec))

	rec = httptest.NewRecorder()
	f.handler.Logout(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	assert.Equal(t, map[string]any{"loggedOut": true}, decode(t, rec))
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestDevLoginLogout(t *testing.T) {
	f := newAuthFixture(t, false)

	rec := httptest.NewRecorder()
	f.handler.DevLogin(rec, httptest.NewRequest(http.MethodPost, "/api/auth/dev-login", nil))
	assert.Equal(t, map[string]any{"loggedIn": true, "dev": true}, decode(t, rec))
	assert.Equal(t, "dev@example.com", sessionFrom(t, f, rec).User.Email)

	rec = httptest.NewRecorder()
	f.handler.DevLogout(rec, httptest.NewRequest(http.MethodPost, "/api/auth/dev-logout", nil))
	assert.Equal(t, map[string]any{"loggedOut": true, "dev": true}, decode(t, rec))
}

// Images

type imageFixture struct {
	handler *imageHandler
	storage *storage.LocalStorage
}

func newImageFixture(t *testing.T, maxSize int64) *imageFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	index := repository.NewJSONImageIndex(filepath.Join(store.Root(), "index.json"), &sync.Mutex{})
	imageService := service.NewImageService(index, store, thumb.NewGenerator())
	return &imageFixture{
		handler: NewImageHandler(imageService, maxSize),
		storage: store,
	}
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{G: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, filename string, data []byte, description string) *http.Request {
	t.Helper()
	return uploadRequestAs(t, filename, "image/png", data, description)
}

func uploadRequestAs(t *testing.T, filename, contentType string, data []byte, description string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Disposition": {`form-data; name="file"; filename="` + filename + `"`},
			"Content-Type":        {contentType},
		})
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	if description != "" {
		require.NoError(t, mw.WriteField("description", description))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (f *imageFixture) upload(t *testing.T, filename string, data []byte, description string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.Upload(rec, uploadRequest(t, filename, data, description))
	return rec
}

func (f *imageFixture) entries(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(f.storage.Root())
	require.NoError(t, err)
	return entries
}

func TestUploadAndFetch(t *testing.T) {
	f := newImageFixture(t, 1<<20)
	data := testPNG(t, 256, 64)

	rec := f.upload(t, "Sunset.PNG", data, "a black cat")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	id, _ := body["id"].(string)
	assert.Len(t, id, 32)
	assert.Equal(t, "/api/images/"+id+"/thumb", body["thumbUrl"])

	req := httptest.NewRequest(http.MethodGet, "/api/images/"+id+"/thumb", nil)
	req.SetPathValue("id", id)
	rec = httptest.NewRecorder()
	f.handler.Thumb(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")
	cfg, _, err := image.DecodeConfig(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Config{ColorModel: cfg.ColorModel, Width: 128, Height: 32}, cfg)

	req = httptest.NewRequest(http.MethodGet, "/api/images/"+id+"/original", nil)
	req.SetPathValue("id", id)
	rec = httptest.NewRecorder()
	f.handler.Original(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, data, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	f.handler.Search(rec, httptest.NewRequest(http.MethodGet, "/api/images/search?q=Cat", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var results []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, map[string]any{"id": id, "description": "a black cat", "thumbUrl": "/api/images/" + id + "/thumb"}, results[0])
}

func TestOriginalIsSandboxed(t *testing.T) {
	f := newImageFixture(t, 1<<20)

	tests := []struct {
		name        string
		contentType string
		attachment  bool
	}{
		{"declared html", "text/html", true},
		{"declared image", "image/png", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			f.handler.Upload(rec, uploadRequestAs(t, "x.png", tt.contentType, testPNG(t, 8, 8), ""))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			id, _ := decode(t, rec)["id"].(string)

			req := httptest.NewRequest(http.MethodGet, "/api/images/"+id+"/original", nil)
			req.SetPathValue("id", id)
			rec = httptest.NewRecorder()
			f.handler.Original(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"), "stored type is kept")
			assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "sandbox")
			if tt.attachment {
				assert.Equal(t, "attachment", rec.Header().Get("Content-Disposition"))
			} else {
				assert.Empty(t, rec.Header().Get("Content-Disposition"))
			}
		})
	}
}

func TestUploadRejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		error    string
	}{
		{"missing file", "", nil, "file is required"},
		{"empty file", "a.png", []byte{}, "file is required"},
		{"bad extension", "notes.txt", []byte("hello"), "invalid file extension: .txt"},
		{"no extension", "photo", []byte("hello"), "invalid file extension: missing extension"},
		{"too large", "big.png", bytes.Repeat([]byte("x"), 2048), "file too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newImageFixture(t, 1024)

			rec := f.upload(t, tt.filename, tt.data, "desc")

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode(t, rec)["error"], tt.error)
			assert.Empty(t, f.entries(t), "nothing is written")
		})
	}
}

func TestUploadUndecodableImage(t *testing.T) {
	f := newImageFixture(t, 1<<20)

	rec := f.upload(t, "fake.jpg", []byte("not really a jpeg"), "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode(t, rec)["error"])
	assert.Empty(t, f.entries(t))
}

func TestFetchUnknownImage(t *testing.T) {
	f := newImageFixture(t, 1<<20)

	for _, serve := range []http.HandlerFunc{f.handler.Thumb, f.handler.Original} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.SetPathValue("id", "nope")
		rec := httptest.NewRecorder()
		serve(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	f := newImageFixture(t, 1<<20)

	rec := httptest.NewRecorder()
	f.handler.Search(rec, httptest.NewRequest(http.MethodGet, "/api/images/search", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
