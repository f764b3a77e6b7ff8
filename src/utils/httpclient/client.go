/*
Copyright (c) YugabyteDB, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"
)

// Client is a wrapper around go-retryablehttp used for the schema endpoint.
// Retries are opt-in through Config.MaxRetries.
type Client struct {
	retryClient *retryablehttp.Client
	baseURL     string
	headers     map[string]string
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}

// NewClient creates a new HTTP client
func NewClient(config Config) *Client {
	defaultCfg := DefaultConfig()
	if config.Timeout == 0 {
		config.Timeout = defaultCfg.Timeout
	}
	if config.RetryWaitMin == 0 {
		config.RetryWaitMin = defaultCfg.RetryWaitMin
	}
	if config.RetryWaitMax == 0 {
		config.RetryWaitMax = defaultCfg.RetryWaitMax
	}
	if config.TLSHandshakeTimeout == 0 {
		config.TLSHandshakeTimeout = defaultCfg.TLSHandshakeTimeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			TLSHandshakeTimeout: config.TLSHandshakeTimeout,
		},
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = config.MaxRetries
	retryClient.RetryWaitMin = config.RetryWaitMin
	retryClient.RetryWaitMax = config.RetryWaitMax
	// Disable default logging from retryablehttp (added our own)
	retryClient.Logger = nil
	retryClient.CheckRetry = customRetryPolicy
	retryClient.RequestLogHook = requestLogHook
	// Hand back the last response instead of a generic "giving up" error so that
	// the caller can report the real status code.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		retryClient: retryClient,
		baseURL:     strings.TrimSuffix(config.BaseURL, "/"),
		headers:     config.Headers,
	}
}

// Get performs a GET request and returns the response body.
// A non-2xx status is reported as *StatusError.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	url := c.buildURL(path)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	startTime := time.Now()
	resp, err := c.retryClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Warnf("GET request failed: url=%s, duration=%s, error=%v", url, duration, err)
		return nil, fmt.Errorf("GET request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	log.Infof("GET request completed: url=%s, status=%d, duration=%s, bytes=%d", url, resp.StatusCode, duration, len(body))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// buildURL combines baseURL and path
func (c *Client) buildURL(path string) string {
	if c.baseURL == "" {
		return path
	}
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

// customRetryPolicy wraps the default policy with logging
func customRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	shouldRetry, checkErr := retryablehttp.DefaultRetryPolicy(ctx, resp, err)

	if shouldRetry {
		reason := "unknown"
		if err != nil {
			reason = fmt.Sprintf("error: %v", err)
		} else if resp != nil {
			reason = fmt.Sprintf("status: %d", resp.StatusCode)
		}
		log.Debugf("Retrying request due to: %s", reason)
	}

	return shouldRetry, checkErr
}

// requestLogHook logs each request attempt
func requestLogHook(logger retryablehttp.Logger, req *http.Request, attemptNum int) {
	if attemptNum == 0 {
		log.Infof("Attempting request: method=%s, url=%s", req.Method, req.URL.String())
	} else {
		log.Infof("Retrying request: attempt=%d, method=%s, url=%s", attemptNum+1, req.Method, req.URL.String())
	}
}
