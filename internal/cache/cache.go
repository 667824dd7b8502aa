package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sopp:probs:"

// Cache stores probability vectors keyed by the SHA-256 of the uploaded
// image, so repeat uploads skip the forward pass.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(url string, ttl time.Duration) (*Cache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Cache{client: redis.NewClient(opt), ttl: ttl}, nil
}

// Key derives the cache key for an image.
func Key(image []byte) string {
	sum := sha256.Sum256(image)
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached probabilities for key. A miss is (nil, false, nil).
func (c *Cache) Get(ctx context.Context, key string) ([]float64, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var probs []float64
	if err := json.Unmarshal(raw, &probs); err != nil {
		return nil, false, fmt.Errorf("decode cached probabilities: %w", err)
	}
	return probs, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, probs []float64) error {
	raw, err := json.Marshal(probs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
