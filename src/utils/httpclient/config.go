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

import "time"

// Config holds configuration for the HTTP client
type Config struct {
	// BaseURL is the base URL for all requests (e.g., "https://host/v1/database")
	BaseURL string

	// Headers are common headers to include in all requests (e.g., Authorization)
	Headers map[string]string

	// Timeout is the maximum time for a single request (including retries)
	Timeout time.Duration

	// MaxRetries is the number of retry attempts after the first one.
	// Zero means a single attempt.
	MaxRetries int

	// RetryWaitMin is the minimum wait time between retries
	RetryWaitMin time.Duration

	// RetryWaitMax is the maximum wait time between retries
	RetryWaitMax time.Duration

	// TLSHandshakeTimeout specifies the maximum amount of time waiting for a TLS handshake
	TLSHandshakeTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:             60 * time.Second,
		MaxRetries:          0,
		RetryWaitMin:        1 * time.Second,
		RetryWaitMax:        30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		Headers:             make(map[string]string),
	}
}
