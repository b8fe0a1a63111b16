package network

import (
	"context"
	"fmt"
	"io"
	"level-observer/src/helpers"
	"level-observer/src/interfaces"
	"level-observer/src/logger"
	"level-observer/src/models"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// AsyncNetworkManager performs GETs with retries, quadratic backoff and proxy
// rotation. It backs the Yahoo chart client.
type AsyncNetworkManager struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Logger       *logger.Logger
	// BackoffUnit scales the i*i wait between attempts.
	BackoffUnit time.Duration

	mu     sync.Mutex
	client *http.Client
}

// -----------------------------------------------------------------------------

func NewAsyncNetworkManager(cfg *models.MConfig, log *logger.Logger) *AsyncNetworkManager {
	var proxies []string
	if cfg.Network.Enabled {
		proxies = cfg.Network.Proxies
	}

	nm := &AsyncNetworkManager{
		Config:       cfg,
		ProxyManager: helpers.NewProxyManager(proxies, cfg.Network.UserAgent, log),
		Logger:       log,
		BackoffUnit:  time.Second,
	}
	nm.client = nm.createClient()
	return nm
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) createClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if nm.ProxyManager.HasProxies() {
		proxyStr, err := nm.ProxyManager.GetCurrentProxy()
		if err == nil && proxyStr != "" {
			if proxyURL, err := url.Parse(proxyStr); err == nil {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}
	}

	timeout := time.Duration(nm.Config.Network.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) currentClient() *http.Client {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	return nm.client
}

func (nm *AsyncNetworkManager) rotateProxy() {
	if !nm.ProxyManager.HasProxies() {
		return
	}

	nm.ProxyManager.RotateProxy()
	nm.mu.Lock()
	nm.client = nm.createClient()
	nm.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and proxy rotation.
func (nm *AsyncNetworkManager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	reqURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, helpers.NewValidationError("parse url", err)
	}

	q := reqURL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	reqURL.RawQuery = q.Encode()
	finalURL := reqURL.String()

	maxRetries := nm.Config.Network.MaxRetries
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, helpers.NewNetworkError("request cancelled", ctx.Err())
			case <-time.After(time.Duration(i*i) * nm.BackoffUnit):
			}
			nm.rotateProxy()
		}

		body, status, err := nm.do(ctx, finalURL)
		if err != nil {
			lastErr = err
			nm.Logger.Info("Request failed (attempt %d/%d): %v", i+1, maxRetries+1, err)
			continue
		}

		switch {
		case status == http.StatusTooManyRequests || status == http.StatusForbidden:
			lastErr = fmt.Errorf("blocked (status %d)", status)
			nm.Logger.Info("Request blocked (%d). Rotating proxy.", status)

			if i == maxRetries-1 && nm.Config.Network.Enabled {
				nm.Logger.Warning("Repeated blocks. Attempting to scrape new proxies...")
				count, refreshErr := nm.ProxyManager.RefreshProxies(ctx)
				if refreshErr == nil && count > 0 {
					nm.Logger.Info("Refreshed %d proxies. Retrying...", count)
					nm.rotateProxy()
				} else {
					nm.Logger.Error("Failed to refresh proxies: %v", refreshErr)
				}
			}
			continue
		case status != http.StatusOK:
			lastErr = fmt.Errorf("bad status: %d", status)
			nm.Logger.Info("Bad status %d", status)
			continue
		}

		return body, nil
	}

	return nil, helpers.NewNetworkError("max retries exceeded", lastErr)
}

// -----------------------------------------------------------------------------

func (nm *AsyncNetworkManager) do(ctx context.Context, finalURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", nm.ProxyManager.GetUserAgent())

	resp, err := nm.currentClient().Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
