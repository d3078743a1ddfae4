package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hupe1980/confsec/logging"
)

// WalletInfo is the parsed subset of the backend's wallet document that the
// engine accounts with. The raw serialized form is preserved separately for
// callers, which treat it as opaque.
type WalletInfo struct {
	Balance                       int64  `json:"balance"`
	Reserved                      int64  `json:"reserved"`
	DefaultCreditAmountPerRequest int64  `json:"default_credit_amount_per_request"`
	Currency                      string `json:"currency"`
}

// nodeInfo describes one routing candidate from the node directory.
type nodeInfo struct {
	ID   string   `json:"id"`
	URL  string   `json:"url"`
	Tags []string `json:"tags"`
}

// apiError is the backend's JSON error document.
type apiError struct {
	Error string `json:"error"`
}

// backendClient talks to the confsec control plane. It returns neutral
// errors; callers classify them with the core.ErrorKind appropriate to the
// operation (configuration at client creation, request afterwards).
type backendClient struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	logger     logging.Logger
}

// fetchWallet retrieves the wallet document for the given credentials and
// returns both the parsed accounting fields and the raw serialized form.
func (b *backendClient) fetchWallet(ctx context.Context, apiKey string, environment *string) (WalletInfo, string, error) {
	body, err := b.get(ctx, "/v1/wallet", apiKey, environment)
	if err != nil {
		return WalletInfo{}, "", err
	}

	var info WalletInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return WalletInfo{}, "", fmt.Errorf("decoding wallet document: %w", err)
	}

	return info, string(body), nil
}

// fetchNodes retrieves the current node directory for the given credentials.
func (b *backendClient) fetchNodes(ctx context.Context, apiKey string, environment *string) ([]nodeInfo, error) {
	body, err := b.get(ctx, "/v1/nodes", apiKey, environment)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Nodes []nodeInfo `json:"nodes"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decoding node directory: %w", err)
	}

	return doc.Nodes, nil
}

func (b *backendClient) get(ctx context.Context, path, apiKey string, environment *string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSuffix(b.baseURL, "/") + path)
	if err != nil {
		return nil, fmt.Errorf("building backend URL: %w", err)
	}

	// environment stays off the wire when unset; the empty string is a
	// valid environment name and is sent as such.
	if environment != nil {
		q := u.Query()
		q.Set("environment", *environment)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building backend request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")
	if b.userAgent != "" {
		req.Header.Set("User-Agent", b.userAgent)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling backend %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading backend response: %w", err)
	}

	b.logger.Debug("backend request path=%s status=%d bytes=%d", path, resp.StatusCode, len(body))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend %s returned %d: %s", path, resp.StatusCode, errorMessage(body))
	}

	return body, nil
}

// errorMessage extracts the backend's error field, falling back to the
// trimmed raw body.
func errorMessage(body []byte) string {
	var ae apiError
	if err := json.Unmarshal(body, &ae); err == nil && ae.Error != "" {
		return ae.Error
	}
	return strings.TrimSpace(string(body))
}
