// Package recaptcha verifies Google reCAPTCHA v3 tokens server-side.
package recaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrLowScore is returned when verification succeeded but the score is below
// the configured threshold.
var ErrLowScore = errors.New("recaptcha score below threshold")

// ErrVerificationFailed is returned when Google rejects the token.
var ErrVerificationFailed = errors.New("recaptcha verification failed")

// Verifier checks tokens against the Google siteverify endpoint.
type Verifier struct {
	secretKey  string
	threshold  float64
	verifyURL  string
	httpClient *http.Client
}

// New creates a verifier. verifyURL defaults to the Google endpoint when empty.
func New(secretKey string, threshold float64, verifyURL string) *Verifier {
	if verifyURL == "" {
		verifyURL = "https://www.google.com/recaptcha/api/siteverify"
	}
	if threshold <= 0 {
		threshold = 0.5
	}
	return &Verifier{
		secretKey:  secretKey,
		threshold:  threshold,
		verifyURL:  verifyURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Result is the siteverify response.
type Result struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify checks a client token. Returns nil only when Google reports success
// and the v3 score meets the threshold.
func (v *Verifier) Verify(ctx context.Context, token string) error {
	result, err := v.Check(ctx, token)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", ErrVerificationFailed, strings.Join(result.ErrorCodes, ","))
	}
	if result.Score < v.threshold {
		return fmt.Errorf("%w: %.2f < %.2f", ErrLowScore, result.Score, v.threshold)
	}
	return nil
}

// Check performs the siteverify call and returns the raw result.
func (v *Verifier) Check(ctx context.Context, token string) (*Result, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrVerificationFailed)
	}
	form := url.Values{}
	form.Set("secret", v.secretKey)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("siteverify request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
