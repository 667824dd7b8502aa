package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// ErrNoSource is returned when the destination is missing and no URL was
// configured to download it from.
var ErrNoSource = errors.New("artifact missing and no download url configured")

type Options struct {
	Timeout     time.Duration
	MaxRetries  uint64
	BaseBackoff time.Duration
}

// Fetcher downloads model artifacts once, before the server starts.
type Fetcher struct {
	client *http.Client
	opts   Options
	logger *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Fetcher {
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		logger: logger,
	}
}

// Ensure makes sure dest exists, downloading it from url if it does not.
// The body is written to a temporary file next to dest and renamed into
// place, so a failed download never leaves a partial artifact behind.
func (f *Fetcher) Ensure(ctx context.Context, url, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		f.logger.Debug("Artifact already present", zap.String("path", dest))
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", dest, err)
	}
	if url == "" {
		return fmt.Errorf("%s: %w", dest, ErrNoSource)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	backoff := retry.WithMaxRetries(f.opts.MaxRetries, retry.NewExponential(f.opts.BaseBackoff))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		n, err := f.download(ctx, url, dest)
		if err != nil {
			f.logger.Warn("Artifact download failed",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		f.logger.Info("Artifact downloaded",
			zap.String("url", url),
			zap.String("path", dest),
			zap.Int64("bytes", n),
			zap.Int("attempt", attempt))
		return nil
	})
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	return nil
}

func (f *Fetcher) download(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, retry.RetryableError(fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		if retryableStatus(resp.StatusCode) {
			return 0, retry.RetryableError(statusErr)
		}
		return 0, statusErr
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return 0, retry.RetryableError(fmt.Errorf("read body: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("move artifact into place: %w", err)
	}
	return n, nil
}

// StatusError reports a non-200 response from the artifact host.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("artifact host returned status %d", e.StatusCode)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
