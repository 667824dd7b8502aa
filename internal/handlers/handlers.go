package handlers

import (
	"context"
	_ "embed"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/sopp-api/internal/metrics"
	"github.com/Brownie44l1/sopp-api/internal/ranking"
)

//go:embed view/index.html
var indexHTML []byte

// Predictor is the inference provider as seen by the HTTP layer.
type Predictor interface {
	Predict(ctx context.Context, image []byte) ([]float64, error)
	Labels() []string
}

// Pinger reports whether an optional backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	TopK           int
	MaxUploadBytes int64
	// Cache is optional and only used for health reporting.
	Cache  Pinger
	Logger *zap.Logger
}

type Handler struct {
	predictor Predictor
	labels    []string
	topK      int
	maxUpload int64
	cache     Pinger
	logger    *zap.Logger
}

// AnalyzeResponse carries the formatted summary alongside the structured
// ranking it was built from.
type AnalyzeResponse struct {
	Result      string               `json:"result"`
	Predictions []ranking.Prediction `json:"predictions"`
}

func NewHandler(predictor Predictor, opts Options) *Handler {
	if opts.TopK < 1 {
		opts.TopK = ranking.DefaultK
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handler{
		predictor: predictor,
		labels:    predictor.Labels(),
		topK:      opts.TopK,
		maxUpload: opts.MaxUploadBytes,
		cache:     opts.Cache,
		logger:    opts.Logger,
	}
}

// Index serves the upload page.
func (h *Handler) Index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

// Analyze handles POST /analyze with a multipart image in "file" (or
// "image") and answers with the top-k classes.
func (h *Handler) Analyze(c *gin.Context) {
	start := time.Now()
	defer func() {
		metrics.AnalyzeDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	if c.Request.ContentLength > h.maxUpload+multipartOverhead {
		h.tooLarge(c)
		return
	}
	body := &limitedBody{ReadCloser: http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+multipartOverhead)}
	c.Request.Body = body

	header, err := h.formFile(c)
	if body.exceeded {
		h.tooLarge(c)
		return
	}
	if err != nil {
		metrics.InferenceErrorsTotal.WithLabelValues("missing_file").Inc()
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "no image file provided, use 'file' as the form field name")
		return
	}
	if header.Size > h.maxUpload {
		h.tooLarge(c)
		return
	}

	data, err := readUpload(header, h.maxUpload)
	if err != nil {
		metrics.InferenceErrorsTotal.WithLabelValues("read").Inc()
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "failed to read uploaded file")
		return
	}

	h.logger.Debug("Received image",
		zap.String("request_id", c.GetString("request_id")),
		zap.String("filename", header.Filename),
		zap.Int("bytes", len(data)))

	probs, err := h.predictor.Predict(c.Request.Context(), data)
	if err != nil {
		h.fail(c, err)
		return
	}

	preds, err := ranking.TopK(h.labels, probs, h.topK)
	if err != nil {
		h.fail(c, err)
		return
	}

	metrics.PredictionsTotal.WithLabelValues(preds[0].Label).Inc()
	c.JSON(http.StatusOK, AnalyzeResponse{
		Result:      ranking.Summarize(preds),
		Predictions: preds,
	})
}

func (h *Handler) tooLarge(c *gin.Context) {
	metrics.InferenceErrorsTotal.WithLabelValues("too_large").Inc()
	respondError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "image exceeds the upload limit")
}

func (h *Handler) fail(c *gin.Context, err error) {
	m := mapError(err)
	metrics.InferenceErrorsTotal.WithLabelValues(m.reason).Inc()
	if m.status >= http.StatusInternalServerError {
		h.logger.Error("Prediction failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err))
	}
	_ = c.Error(err)
	respondError(c, m.status, m.code, m.message)
}

func (h *Handler) formFile(c *gin.Context) (*multipart.FileHeader, error) {
	header, err := c.FormFile("file")
	if err == nil {
		return header, nil
	}
	if alt, altErr := c.FormFile("image"); altErr == nil {
		return alt, nil
	}
	return nil, err
}

// multipartOverhead is the allowance for boundaries and part headers on
// top of the image itself.
const multipartOverhead = 1 << 20

// limitedBody records whether the request body hit its size cap, since
// the multipart parser does not always surface *http.MaxBytesError intact.
type limitedBody struct {
	io.ReadCloser
	exceeded bool
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		b.exceeded = true
	}
	return n, err
}

func readUpload(header *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit))
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	components := map[string]string{"model": "loaded"}
	healthy := true

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			components["cache"] = "error: " + err.Error()
		} else {
			components["cache"] = "ok"
		}
	} else {
		components["cache"] = "not configured"
	}

	if len(h.labels) == 0 {
		components["model"] = "not loaded"
		healthy = false
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, HealthStatus{Status: status, Components: components})
}

// Ready handles GET /ready. The model is loaded before the router is
// built, so a constructed handler is always ready.
func (h *Handler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready", "classes": len(h.labels)})
}
