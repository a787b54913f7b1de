// Package api implements the HTTP gateway to the todo backend: bearer-token
// attachment, single-flight token refresh on 401, and structured error
// surfacing.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/alexandre-rey/utodo-sub000/internal/config"
	"github.com/alexandre-rey/utodo-sub000/internal/errs"
	"github.com/alexandre-rey/utodo-sub000/internal/model"
)

const refreshPath = "/auth/refresh"

// Client is the single HTTP client all resource services share.
type Client struct {
	base  string
	hc    *http.Client
	vault *Vault
	log   *zap.Logger

	// refresh deduplicates concurrent 401-triggered token refreshes:
	// callers share one in-flight refresh and each retries independently.
	refresh singleflight.Group
}

// New constructs a Client. The base URL is upgraded to HTTPS for non-loopback
// hosts. A cookie jar is attached so server-managed cookies accompany every
// request regardless of bearer-token presence.
func New(baseURL string, timeout time.Duration, vault *Vault, log *zap.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		base:  config.UpgradeURL(baseURL),
		hc:    &http.Client{Timeout: timeout, Jar: jar},
		vault: vault,
		log:   log,
	}
}

// Do issues a JSON request and decodes the response into out (which may be
// nil). On 401 off the refresh path it refreshes the token pair once and
// retries the original request exactly once; if the refresh fails, tokens are
// cleared and the original 401 is surfaced.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	err := c.once(ctx, method, path, body, out)
	apiErr, ok := err.(*errs.APIError)
	if !ok || apiErr.StatusCode != http.StatusUnauthorized || path == refreshPath {
		return err
	}
	if c.vault.Refresh() == "" {
		return err
	}
	if _, rerr, _ := c.refresh.Do("refresh", func() (any, error) {
		return nil, c.doRefresh(ctx)
	}); rerr != nil {
		c.log.Warn("api: token refresh failed", zap.Error(rerr))
		c.vault.Clear()
		return err
	}
	return c.once(ctx, method, path, body, out)
}

// once performs a single request/response cycle with no retry logic.
func (c *Client) once(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: marshal body for %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("api: build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.vault.Access(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("api: read response of %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.asAPIError(resp, path, respBody)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("api: decode response of %s %s: %w", method, path, err)
	}
	return nil
}

// asAPIError decodes the backend error shape, synthesizing one from the
// status line when the body is not parseable JSON.
func (c *Client) asAPIError(resp *http.Response, path string, body []byte) error {
	var ae errs.APIError
	if err := json.Unmarshal(body, &ae); err == nil && ae.StatusCode != 0 {
		return &ae
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &errs.APIError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		Timestamp:  time.Now().UTC(),
		Path:       path,
	}
}

// doRefresh rotates the token pair using the held refresh token.
func (c *Client) doRefresh(ctx context.Context) error {
	var tok model.Tokens
	req := map[string]string{"refreshToken": c.vault.Refresh()}
	if err := c.once(ctx, http.MethodPost, refreshPath, req, &tok); err != nil {
		return err
	}
	return c.vault.Set(tok)
}
