package router

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Brownie44l1/sopp-api/internal/handlers"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPredictor struct{}

func (stubPredictor) Predict(context.Context, []byte) ([]float64, error) {
	return []float64{0.7, 0.2, 0.1}, nil
}

func (stubPredictor) Labels() []string {
	return []string{"kantarell", "gul_trompetsopp", "steinsopp"}
}

func newRouter(t *testing.T, staticDir string) *gin.Engine {
	t.Helper()
	h := handlers.NewHandler(stubPredictor{}, handlers.Options{TopK: 3})
	return Setup(h, Options{StaticDir: staticDir, AllowOrigins: []string{"*"}}, zap.NewNop())
}

func TestSetupRoutes(t *testing.T) {
	r := newRouter(t, "")

	for _, path := range []string{"/", "/health", "/ready", "/metrics"} {
		req, _ := http.NewRequest(http.MethodGet, path, http.NoBody)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), path)
	}
}

func TestSetupAnalyze(t *testing.T) {
	r := newRouter(t, "")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "sopp.jpg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("bytes"))
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest(http.MethodPost, "/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Origin", "https://sopp.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Body.String(), "Topp 3 klassifiseringer: kantarell: 70.0%, gul_trompetsopp: 20.0%, steinsopp: 10.0%")
}

func TestSetupStatic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.css"), []byte("body{}"), 0o600))
	r := newRouter(t, dir)

	req, _ := http.NewRequest(http.MethodGet, "/static/app.css", http.NoBody)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "body{}", w.Body.String())
}

func TestSetupWithoutStaticDir(t *testing.T) {
	r := newRouter(t, filepath.Join(t.TempDir(), "missing"))

	req, _ := http.NewRequest(http.MethodGet, "/static/app.css", http.NoBody)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
