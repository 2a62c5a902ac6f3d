package announce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"
)

var ErrNoClip = errors.New("tts returned no clip url")

type Options struct {
	URL      string
	Timeout  time.Duration
	Cache    Cache
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// Gateway asks the TTS collaborator for a clip once per fingerprint.
type Gateway struct {
	url      string
	client   *http.Client
	cache    Cache
	cacheTTL time.Duration
	logger   *slog.Logger
	group    singleflight.Group
}

func NewGateway(options Options) *Gateway {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	cache := options.Cache
	if cache == nil {
		cache = NewMemoryCache()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		url:      options.URL,
		client:   &http.Client{Timeout: timeout},
		cache:    cache,
		cacheTTL: options.CacheTTL,
		logger:   logger,
	}
}

// Enabled is false when no TTS endpoint is configured.
func (g *Gateway) Enabled() bool {
	return g != nil && g.url != ""
}

type clipRequest struct {
	Fingerprint string `json:"fingerprint"`
	Text        string `json:"text"`
}

type clipResponse struct {
	URL string `json:"url"`
}

// ClipURL returns the voice clip URL for the call. It returns "" without
// error when the gateway is disabled.
func (g *Gateway) ClipURL(ctx context.Context, info CallInfo) (string, error) {
	if !g.Enabled() {
		return "", nil
	}
	fingerprint := Fingerprint(info)
	if url, ok, err := g.cache.Get(ctx, fingerprint); err != nil {
		g.logger.Warn("announce cache read failed", "fingerprint", fingerprint, "error", err)
	} else if ok {
		return url, nil
	}

	value, err, _ := g.group.Do(fingerprint, func() (interface{}, error) {
		url, err := g.request(ctx, clipRequest{Fingerprint: fingerprint, Text: Text(info)})
		if err != nil {
			return "", err
		}
		if err := g.cache.Set(ctx, fingerprint, url, g.cacheTTL); err != nil {
			g.logger.Warn("announce cache write failed", "fingerprint", fingerprint, "error", err)
		}
		return url, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

func (g *Gateway) request(ctx context.Context, payload clipRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("tts request: status %d", resp.StatusCode)
	}
	var out clipResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("tts response: %w", err)
	}
	if out.URL == "" {
		return "", ErrNoClip
	}
	return out.URL, nil
}
