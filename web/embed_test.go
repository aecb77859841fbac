package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html":     {Data: []byte("<html>page</html>")},
		"assets/app.css": {Data: []byte("body{}")},
	}
}

func TestSPAHandler(t *testing.T) {
	h := spaHandler(testFS())

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "root serves page", method: http.MethodGet, path: "/", wantStatus: http.StatusOK, wantBody: "<html>page</html>"},
		{name: "static file", method: http.MethodGet, path: "/assets/app.css", wantStatus: http.StatusOK, wantBody: "body{}"},
		{name: "client route falls back", method: http.MethodGet, path: "/journey", wantStatus: http.StatusOK, wantBody: "<html>page</html>"},
		{name: "directory falls back", method: http.MethodGet, path: "/assets", wantStatus: http.StatusOK, wantBody: "<html>page</html>"},
		{name: "api miss is 404", method: http.MethodGet, path: "/api/nope", wantStatus: http.StatusNotFound},
		{name: "post rejected", method: http.MethodPost, path: "/", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestSPAHandlerPageNotCached(t *testing.T) {
	rec := httptest.NewRecorder()
	spaHandler(testFS()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
}

func TestEmbeddedPageExists(t *testing.T) {
	rec := httptest.NewRecorder()
	SPAHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "WhisperBridge")
}
