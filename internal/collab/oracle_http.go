package collab

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/models"
)

// HTTPScoringOracle calls an external scoring service. The oracle is a
// best-effort signal: when it fails, the engine falls back to the reason
// code's base weight.
type HTTPScoringOracle struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPScoringOracle(url, apiKey string, timeout time.Duration) *HTTPScoringOracle {
	return &HTTPScoringOracle{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (o *HTTPScoringOracle) Score(text string, reason models.ReasonCode) (models.Severity, error) {
	payload, err := json.Marshal(map[string]string{
		"text":   text,
		"reason": string(reason),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequest(http.MethodPost, o.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: scoring oracle returned %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		Severity models.Severity `json:"severity"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !body.Severity.Valid() {
		return "", fmt.Errorf("%w: scoring oracle returned unknown severity %q", ErrUnavailable, body.Severity)
	}
	return body.Severity, nil
}
