package inference

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Brownie44l1/sopp-api/internal/cache"
	"github.com/Brownie44l1/sopp-api/internal/metrics"
	"github.com/Brownie44l1/sopp-api/internal/model"
)

// ErrOutputMismatch is returned when the model emits a vector whose
// length differs from the label list.
var ErrOutputMismatch = errors.New("model output does not match class labels")

// Runner executes one forward pass over a preprocessed tensor.
type Runner interface {
	Run(input []float32) ([]float32, error)
}

// Preparer turns raw upload bytes into a model input tensor.
type Preparer interface {
	Prepare(data []byte) ([]float32, error)
}

// Cache is the subset of cache.Cache the provider uses.
type Cache interface {
	Get(ctx context.Context, key string) ([]float64, bool, error)
	Set(ctx context.Context, key string, probs []float64) error
}

// Provider turns image bytes into a probability vector aligned with
// Labels. It is built once at startup and shared by all requests.
type Provider struct {
	runner       Runner
	preparer     Preparer
	labels       []string
	applySoftmax bool
	cache        Cache
	logger       *zap.Logger
}

type Options struct {
	Labels       []string
	ApplySoftmax bool
	// Cache is optional.
	Cache  Cache
	Logger *zap.Logger
}

func NewProvider(runner Runner, preparer Preparer, opts Options) *Provider {
	labels := make([]string, len(opts.Labels))
	copy(labels, opts.Labels)
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		runner:       runner,
		preparer:     preparer,
		labels:       labels,
		applySoftmax: opts.ApplySoftmax,
		cache:        opts.Cache,
		logger:       logger,
	}
}

// Labels returns a copy of the ordered class labels.
func (p *Provider) Labels() []string {
	out := make([]string, len(p.labels))
	copy(out, p.labels)
	return out
}

// Predict classifies one image. Decoding failures wrap
// imageproc.ErrInvalidImage; cache failures are logged and skipped.
func (p *Provider) Predict(ctx context.Context, image []byte) ([]float64, error) {
	var key string
	if p.cache != nil {
		key = cache.Key(image)
		probs, ok, err := p.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
			p.logger.Warn("Prediction cache lookup failed", zap.Error(err))
		case ok && len(probs) == len(p.labels):
			metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			return probs, nil
		default:
			metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		}
	}

	input, err := p.preparer.Prepare(image)
	if err != nil {
		return nil, err
	}

	raw, err := p.runner.Run(input)
	if err != nil {
		return nil, err
	}
	if len(raw) != len(p.labels) {
		return nil, fmt.Errorf("%w: %d values for %d labels", ErrOutputMismatch, len(raw), len(p.labels))
	}

	var probs []float64
	if p.applySoftmax {
		probs = model.Softmax(raw)
	} else {
		probs = model.Widen(raw)
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, probs); err != nil {
			p.logger.Warn("Prediction cache store failed", zap.Error(err))
		}
	}
	return probs, nil
}
