//go:generate go run go.uber.org/mock/mockgen -source=verifier.go -destination=../mocks/mock_verifier.go -package=mocks
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrAuthRejected means the authority answered and said the token is not valid.
	ErrAuthRejected = errors.New("auth rejected")
	// ErrAuthUnavailable means the authority could not be asked.
	ErrAuthUnavailable = errors.New("auth unavailable")
)

type Decision int

const (
	// Admitted is returned when no token was presented.
	Admitted Decision = iota
	Valid
	Invalid
)

func (d Decision) String() string {
	switch d {
	case Admitted:
		return "admitted"
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// Verifier validates a bearer token against an external authority.
// A non-nil error means the verification itself failed.
type Verifier interface {
	Verify(ctx context.Context, token string) (Decision, error)
}

// Check collapses a verification into the join gate outcome: nil to admit,
// ErrAuthRejected or a wrapped ErrAuthUnavailable to refuse.
func Check(ctx context.Context, v Verifier, token string) error {
	if token == "" {
		return nil
	}
	d, err := v.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, ErrAuthUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrAuthUnavailable, err)
	}
	if d == Invalid {
		return ErrAuthRejected
	}
	return nil
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

// HTTPVerifier asks GET {baseURL}{path} with the token as a bearer credential
// and expects {"valid": bool}. There is no retry.
type HTTPVerifier struct {
	endpoint string
	client   *http.Client
}

func NewHTTPVerifier(baseURL, path string, timeout time.Duration) *HTTPVerifier {
	return &HTTPVerifier{
		endpoint: strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (Decision, error) {
	if token == "" {
		return Admitted, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint, nil)
	if err != nil {
		return Invalid, fmt.Errorf("%w: build request: %v", ErrAuthUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return Invalid, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Invalid, fmt.Errorf("%w: authority responded %d", ErrAuthUnavailable, resp.StatusCode)
	}
	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Invalid, fmt.Errorf("%w: decode response: %v", ErrAuthUnavailable, err)
	}
	log.Debug().Str("module", "auth").Bool("valid", body.Valid).Msg("token verified")
	if !body.Valid {
		return Invalid, nil
	}
	return Valid, nil
}
