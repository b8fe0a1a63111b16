package helpers

import (
	"context"
	"fmt"
	"io"
	"level-observer/src/logger"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	proxyListURL   = "https://www.sslproxies.org/"
	maxProxies     = 50
	fallbackAgent  = "Mozilla/5.0 (Go-http-client/1.1)"
	proxyRowSearch = `<tr><td>(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})</td><td>(\d+)</td>`
)

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// -----------------------------------------------------------------------------

// ProxyManager rotates outbound proxies and user agents for the Yahoo client.
type ProxyManager struct {
	proxies    []string
	userAgents []string
	index      int
	mu         sync.Mutex
	logger     *logger.Logger
	httpClient *http.Client
	listURL    string
}

// -----------------------------------------------------------------------------

func NewProxyManager(proxies []string, userAgent string, log *logger.Logger) *ProxyManager {
	var validProxies []string
	for _, p := range proxies {
		if ValidateProxy(p) {
			validProxies = append(validProxies, FormatProxy(p))
		}
	}

	agents := defaultUserAgents
	if userAgent != "" {
		agents = []string{userAgent}
	}

	return &ProxyManager{
		proxies:    validProxies,
		userAgents: agents,
		logger:     log.Named("ProxyManager"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		listURL:    proxyListURL,
	}
}

// -----------------------------------------------------------------------------

func (pm *ProxyManager) GetCurrentProxy() (string, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if len(pm.proxies) == 0 {
		return "", nil
	}
	return pm.proxies[pm.index], nil
}

// -----------------------------------------------------------------------------

func (pm *ProxyManager) RotateProxy() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if len(pm.proxies) <= 1 {
		return
	}

	pm.index = (pm.index + 1) % len(pm.proxies)
	pm.logger.Info("Rotating proxy to: %s", pm.proxies[pm.index])
}

// -----------------------------------------------------------------------------

func (pm *ProxyManager) GetUserAgent() string {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if len(pm.userAgents) == 0 {
		return fallbackAgent
	}
	return pm.userAgents[rand.Intn(len(pm.userAgents))]
}

// -----------------------------------------------------------------------------

// RefreshProxies replaces the pool with proxies scraped from the public list.
func (pm *ProxyManager) RefreshProxies(ctx context.Context) (int, error) {
	pm.logger.Info("Refreshing proxies from %s", pm.listURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pm.listURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", pm.GetUserAgent())

	resp, err := pm.httpClient.Do(req)
	if err != nil {
		return 0, NewNetworkError("fetch proxy list", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	newProxies := ParseProxyList(string(body))
	if len(newProxies) == 0 {
		return 0, fmt.Errorf("no proxies found on page")
	}

	rand.Shuffle(len(newProxies), func(i, j int) {
		newProxies[i], newProxies[j] = newProxies[j], newProxies[i]
	})
	if len(newProxies) > maxProxies {
		newProxies = newProxies[:maxProxies]
	}

	pm.mu.Lock()
	pm.proxies = newProxies
	pm.index = 0
	pm.mu.Unlock()

	pm.logger.Info("Found and updated %d proxies", len(newProxies))
	return len(newProxies), nil
}

// -----------------------------------------------------------------------------

// ParseProxyList extracts http://ip:port entries from the proxy list table.
func ParseProxyList(page string) []string {
	re := regexp.MustCompile(proxyRowSearch)
	var out []string
	for _, match := range re.FindAllStringSubmatch(page, -1) {
		out = append(out, fmt.Sprintf("http://%s:%s", match[1], match[2]))
	}
	return out
}

// -----------------------------------------------------------------------------

func (pm *ProxyManager) HasProxies() bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.proxies) > 0
}

// -----------------------------------------------------------------------------

// ValidateProxy checks if a proxy string is roughly valid. A missing scheme
// is accepted and fixed by FormatProxy.
func ValidateProxy(proxyStr string) bool {
	if strings.TrimSpace(proxyStr) == "" {
		return false
	}
	u, err := url.Parse(FormatProxy(proxyStr))
	return err == nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https" || u.Scheme == "socks5")
}

// -----------------------------------------------------------------------------

// FormatProxy ensures the proxy has a scheme.
func FormatProxy(proxyStr string) string {
	if !strings.Contains(proxyStr, "://") {
		return "http://" + proxyStr
	}
	return proxyStr
}
