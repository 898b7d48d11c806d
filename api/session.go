package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	// loginPath exchanges the API key for a session cookie.
	loginPath = "/auth/api_key/login"

	// sessionCookieName is the cookie the edge endpoint sets on login.
	sessionCookieName = "gravity"

	// refreshBuffer: a held cookie this close to expiry is refreshed
	// before use.
	refreshBuffer = 5 * time.Second

	// defaultCookieTTL applies when the Set-Cookie header carries no
	// expires attribute.
	defaultCookieTTL = 24 * time.Hour
)

var (
	// ErrNoAPIKey means an authenticated call was attempted with no API
	// key configured. A configuration error, not a retryable condition.
	ErrNoAPIKey = errors.New("api: API key not configured")

	// ErrSessionRefresh means the login round-trip produced no usable
	// session cookie.
	ErrSessionRefresh = errors.New("api: session refresh failed")
)

// The cookie value and expiry are extracted independently from the raw
// Set-Cookie header text.
var (
	cookieValueRe   = regexp.MustCompile(sessionCookieName + `=([^;\s]+)`)
	cookieExpiresRe = regexp.MustCompile(`(?i)expires=([^;]+)`)
)

// sessionState holds the current authentication credential.
type sessionState struct {
	mu     sync.Mutex
	value  string
	expiry time.Time
}

// sessionCookie is a parsed credential before it replaces the held one.
type sessionCookie struct {
	value  string
	expiry time.Time
}

// refreshSession ensures a fresh session cookie is held. Fails
// immediately, without network I/O, when no API key is configured. A
// held cookie outside the refresh buffer is a no-op.
func (c *Client) refreshSession(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return ErrNoAPIKey
	}

	c.session.mu.Lock()
	valid := c.session.value != "" && time.Until(c.session.expiry) > refreshBuffer
	c.session.mu.Unlock()
	if valid {
		return nil
	}

	ck, err := c.login(ctx)
	if err != nil {
		return err
	}
	if ck == nil {
		return ErrSessionRefresh
	}

	// Replace atomically; no partial update.
	c.session.mu.Lock()
	c.session.value = ck.value
	c.session.expiry = ck.expiry
	c.session.mu.Unlock()

	c.logger.Debug("session refreshed", "expiry", ck.expiry)
	return nil
}

// login posts the API key to the session endpoint and parses the
// Set-Cookie header. A non-success status or an unparseable header
// yields (nil, nil); the caller turns that into a hard failure.
func (c *Client) login(ctx context.Context) (*sessionCookie, error) {
	body, err := json.Marshal(map[string]string{"api_key": c.cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("encode login payload: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.EdgeURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("session login rejected", "status", resp.StatusCode)
		return nil, nil
	}

	return parseSessionCookie(resp.Header.Get("Set-Cookie"), time.Now()), nil
}

// parseSessionCookie extracts the session value and expiry from the raw
// Set-Cookie header. Returns nil when the named value is absent; a
// missing expires attribute defaults to now + 24h.
func parseSessionCookie(header string, now time.Time) *sessionCookie {
	val := cookieValueRe.FindStringSubmatch(header)
	if val == nil {
		return nil
	}

	ck := &sessionCookie{
		value:  val[1],
		expiry: now.Add(defaultCookieTTL),
	}
	if exp := cookieExpiresRe.FindStringSubmatch(header); exp != nil {
		if t, err := http.ParseTime(strings.TrimSpace(exp[1])); err == nil {
			ck.expiry = t
		}
	}
	return ck
}

// cookieHeader renders the held cookie for the Cookie request header, or
// "" when none is held.
func (c *Client) cookieHeader() string {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	if c.session.value == "" {
		return ""
	}
	return sessionCookieName + "=" + c.session.value
}
