// Package scanner defines the malware-scanning collaborator consumed by the
// staging store. Scanning itself happens in an external service; this package
// only carries the contract, the HTTP client, and the availability policy.
package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Mode decides what happens when the scanner cannot be reached.
type Mode string

const (
	// ModeMandatory hard-fails an upload when the scan cannot run.
	ModeMandatory Mode = "mandatory"
	// ModePermissive logs the unavailable scan and lets the upload proceed.
	ModePermissive Mode = "permissive"
)

// ValidMode reports whether m is a recognized scan mode.
func ValidMode(m Mode) bool {
	return m == ModeMandatory || m == ModePermissive
}

// ErrUnavailable is returned when the scanning service cannot be reached.
// Callers decide whether that aborts the upload based on the configured Mode.
var ErrUnavailable = errors.New("malware scanner unavailable")

// Result is the outcome of scanning one file.
type Result struct {
	Clean     bool   `json:"clean"`
	Signature string `json:"signature,omitempty"`
}

// Scanner checks uploaded bytes before they enter the staging area.
type Scanner interface {
	Scan(ctx context.Context, filename string, data []byte) (Result, error)
}

// HTTPScanner posts file bytes to a scanning endpoint and decodes the verdict.
type HTTPScanner struct {
	endpoint string
	client   *http.Client
}

// NewHTTPScanner builds a client for the given endpoint. An empty endpoint
// yields a scanner that always reports ErrUnavailable, which keeps the
// mandatory/permissive policy decision in one place.
func NewHTTPScanner(endpoint string) *HTTPScanner {
	return &HTTPScanner{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Scan submits the file to the external scanner.
func (s *HTTPScanner) Scan(ctx context.Context, filename string, data []byte) (Result, error) {
	if s.endpoint == "" {
		return Result{}, ErrUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(data))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Filename", filename)

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%w: scan endpoint returned %d", ErrUnavailable, resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("%w: invalid scan response", ErrUnavailable)
	}
	return result, nil
}
