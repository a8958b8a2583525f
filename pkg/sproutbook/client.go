package sproutbook

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	errs "nestsync/pkg/errors"
	"nestsync/pkg/logger"
)

// Client talks to the Sproutbook web API using a parent session cookie.
// Feed calls and media downloads go through separate http.Clients so a
// long video transfer is not cut off by the short API timeout.
type Client struct {
	httpClient  *http.Client
	mediaClient *http.Client
	headers     map[string]string
	baseURL     string
	logger      logger.Logger
}

// NewClient creates a new Sproutbook API client
func NewClient(baseURL string, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		mediaClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"Accept":          "application/json, text/plain, */*",
			"Accept-Language": "en-US,en;q=0.9",
			"Cache-Control":   "no-cache",
			"Pragma":          "no-cache",
		},
		baseURL: baseURL,
		logger:  log,
	}
}

// SetMediaTimeout gives asset downloads their own deadline, independent
// of the feed request timeout.
func (c *Client) SetMediaTimeout(timeout time.Duration) {
	c.mediaClient.Timeout = timeout
}

// BaseURL returns the configured service host
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// SetSession attaches the parent session to every request
func (c *Client) SetSession(cookie, accountID, userAgent string) {
	if cookie != "" {
		c.headers["Cookie"] = "sbsession=" + cookie
	}
	if accountID != "" {
		c.headers["X-Account-Id"] = accountID
	}
	if userAgent != "" {
		c.headers["User-Agent"] = userAgent
	}
}

// doRequest performs an API request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	return c.do(c.httpClient, req)
}

// do sends a request through the given http.Client with shared headers
func (c *Client) do(hc *http.Client, req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := hc.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Err:     err,
		}
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// Get performs a GET request to the specified URL
func (c *Client) Get(url string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
			Err:     err,
		}
	}

	return c.doRequest(req)
}

// getBody performs a GET, maps the status to a typed error, and returns
// the raw body bytes.
func (c *Client) getBody(url string) ([]byte, error) {
	resp, err := c.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	return body, nil
}

// checkResponseStatus maps HTTP statuses onto the error taxonomy: 429 and
// 5xx are transient, auth statuses and everything else fatal.
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.WarnWithFields("session rejected", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeAuth,
			Message: "session rejected, run auth login again",
			Code:    resp.StatusCode,
		}

	case resp.StatusCode == http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeRateLimit,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
		}

	case resp.StatusCode >= 500:
		c.logger.ErrorWithFields("server error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: "server error",
			Code:    resp.StatusCode,
		}

	default:
		snippet := bodySnippet(resp.Body)
		c.logger.ErrorWithFields("unexpected feed response", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
			"body":   snippet,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeFeed,
			Message: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, snippet),
			Code:    resp.StatusCode,
		}
	}
}

// bodySnippet reads a truncated preview of a response body for error
// messages and logs.
func bodySnippet(r io.Reader) string {
	const max = 200
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil || len(data) == 0 {
		return ""
	}
	s := strings.TrimSpace(string(data))
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}

// FetchEnrollments lists the enrollments visible to the account
func (c *Client) FetchEnrollments(accountID string) ([]Enrollment, error) {
	listURL := EnrollmentsURL(c.baseURL, accountID)

	c.logger.DebugWithFields("fetching enrollments", map[string]interface{}{
		"account": accountID,
	})

	body, err := c.getBody(listURL)
	if err != nil {
		c.logger.ErrorWithFields("failed to fetch enrollments", map[string]interface{}{
			"account": accountID,
			"error":   err.Error(),
		})
		return nil, err
	}

	enrollments, err := DecodeEnrollments(body)
	if err != nil {
		return nil, c.parseError("enrollments", body, err)
	}

	c.logger.DebugWithFields("fetched enrollments", map[string]interface{}{
		"account": accountID,
		"count":   len(enrollments),
	})

	return enrollments, nil
}

// FetchNotesPage fetches one feed page below the exclusive cursor bound
func (c *Client) FetchNotesPage(enrollmentID, before string, count int, categories []string) ([]Note, error) {
	pageURL := NotesURL(c.baseURL, enrollmentID, before, count, categories)

	c.logger.DebugWithFields("fetching notes page", map[string]interface{}{
		"enrollment": enrollmentID,
		"before":     before,
		"count":      count,
	})

	body, err := c.getBody(pageURL)
	if err != nil {
		c.logger.ErrorWithFields("failed to fetch notes page", map[string]interface{}{
			"enrollment": enrollmentID,
			"before":     before,
			"error":      err.Error(),
		})
		return nil, err
	}

	notes, err := DecodeNotes(body)
	if err != nil {
		return nil, c.parseError("notes page", body, err)
	}

	c.logger.DebugWithFields("fetched notes page", map[string]interface{}{
		"enrollment": enrollmentID,
		"count":      len(notes),
	})

	return notes, nil
}

// parseError logs a body preview and wraps a decode failure
func (c *Client) parseError(what string, body []byte, err error) error {
	preview := string(body)
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	c.logger.ErrorWithFields("failed to parse response", map[string]interface{}{
		"what":         what,
		"error":        err.Error(),
		"body_preview": preview,
	})
	return &errs.Error{
		Type:    errs.ErrorTypeParsing,
		Message: fmt.Sprintf("failed to parse %s: %v", what, err),
		Err:     err,
	}
}

// DownloadAsset opens a media stream. The caller owns the returned body
// and must close it.
func (c *Client) DownloadAsset(assetURL string) (io.ReadCloser, int64, error) {
	c.logger.DebugWithFields("downloading asset", map[string]interface{}{
		"url": assetURL,
	})

	req, err := http.NewRequest("GET", assetURL, nil)
	if err != nil {
		return nil, 0, &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
			Err:     err,
		}
	}

	resp, err := c.do(c.mediaClient, req)
	if err != nil {
		return nil, 0, err
	}

	if err := c.checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		return nil, 0, err
	}

	return resp.Body, resp.ContentLength, nil
}
