package collab

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/models"
	"github.com/hashicorp/go-retryablehttp"
)

// HTTPContentRegistry talks to the content service's internal moderation API.
// Mutations (hide/unhide/ban) go through a plain client with no automatic
// retries; the read-only flag count uses a retrying client since it is safe
// to repeat.
type HTTPContentRegistry struct {
	baseURL string
	token   string
	client  *http.Client
	reader  *retryablehttp.Client
}

func NewHTTPContentRegistry(baseURL, token string, timeout time.Duration) *HTTPContentRegistry {
	reader := retryablehttp.NewClient()
	reader.RetryMax = 3
	reader.RetryWaitMin = 200 * time.Millisecond
	reader.RetryWaitMax = 2 * time.Second
	reader.HTTPClient.Timeout = timeout
	reader.Logger = nil

	return &HTTPContentRegistry{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		reader:  reader,
	}
}

func (r *HTTPContentRegistry) post(appID, path string) error {
	req, err := http.NewRequest(http.MethodPost, r.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("X-App-ID", appID)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: content registry returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func refPath(ref models.ContentRef) string {
	return "/internal/content/" + url.PathEscape(string(ref.Type)) + "/" + url.PathEscape(ref.ID)
}

func (r *HTTPContentRegistry) Hide(appID string, ref models.ContentRef) error {
	return r.post(appID, refPath(ref)+"/hide")
}

func (r *HTTPContentRegistry) Unhide(appID string, ref models.ContentRef) error {
	return r.post(appID, refPath(ref)+"/unhide")
}

func (r *HTTPContentRegistry) BanUser(appID string, userID string) error {
	return r.post(appID, "/internal/users/"+url.PathEscape(userID)+"/ban")
}

func (r *HTTPContentRegistry) GetFlagCount(appID string, ref models.ContentRef) (int, error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, r.baseURL+refPath(ref)+"/flags", nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("X-App-ID", appID)

	resp, err := r.reader.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("%w: content registry returned %d", ErrUnavailable, resp.StatusCode)
	}

	var body struct {
		FlagCount int `json:"flag_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body.FlagCount, nil
}
