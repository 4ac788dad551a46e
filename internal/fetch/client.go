// Package fetch downloads the raw ATT&CK bundle. The knowledge base itself
// never fetches; it consumes already-downloaded bytes, so everything here
// stays on the front-end side of the load contract.
package fetch

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mastervim/mitre-hunter/internal/config"
	"go.uber.org/zap"
)

// Transport hardening defaults.
const (
	defaultDialTimeout         = 15 * time.Second
	defaultKeepAliveInterval   = 30 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second
	defaultIdleConnTimeout     = 90 * time.Second

	requiredMinTLSVersion = tls.VersionTLS12
)

// Client downloads the bundle with retry and integrity visibility. Transient
// failures (network errors, 5xx) back off exponentially; client errors are
// permanent.
type Client struct {
	httpClient *http.Client
	url        string
	maxRetries int
	log        *zap.Logger
}

// New builds a Client from the fetch configuration.
func New(cfg config.FetchConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: defaultKeepAliveInterval,
		}).DialContext,
		TLSClientConfig:     &tls.Config{MinVersion: requiredMinTLSVersion},
		TLSHandshakeTimeout: defaultTLSHandshakeTimeout,
		IdleConnTimeout:     defaultIdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		url:        cfg.URL,
		maxRetries: cfg.MaxRetries,
		log:        logger.Named("fetch"),
	}
}

// Download fetches the bundle bytes and returns them together with their
// SHA-256 hex digest. The digest is logged so operators can compare against
// upstream release notes; verification policy stays with the caller.
func (c *Client) Download(ctx context.Context) ([]byte, string, error) {
	var payload []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("building request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.log.Warn("Bundle download attempt failed", zap.Error(err))
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			// fall through to read
		case resp.StatusCode >= 500:
			c.log.Warn("Bundle download got server error, will retry",
				zap.Int("status", resp.StatusCode))
			return fmt.Errorf("server returned %s", resp.Status)
		default:
			return backoff.Permanent(fmt.Errorf("server returned %s", resp.Status))
		}

		payload, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, "", fmt.Errorf("downloading bundle from %s: %w", c.url, err)
	}

	digest := sha256.Sum256(payload)
	digestHex := hex.EncodeToString(digest[:])
	c.log.Info("Bundle downloaded",
		zap.String("url", c.url),
		zap.Int("bytes", len(payload)),
		zap.String("sha256", digestHex))

	return payload, digestHex, nil
}
