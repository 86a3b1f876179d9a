package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	config "github.com/kee711/threads-saas-sub001/configs"
)

// Credentials carries a decrypted, ready-to-use access token for one
// connected Threads account.
type Credentials struct {
	ThreadsUserID string
	AccessToken   string
	ExpiresAt     time.Time
}

// ThreadsGateway is the single place that talks to the Threads Graph API.
// Publishing is two-phase: a media container is created first, then
// published with a separate call.
type ThreadsGateway interface {
	CreateContainer(ctx context.Context, creds Credentials, body string, mediaURLs []string) (string, error)
	PublishContainer(ctx context.Context, creds Credentials, creationID string) (string, error)
}

type threadsGateway struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewThreadsGateway(cfg config.Config) ThreadsGateway {
	return &threadsGateway{
		baseURL: cfg.ThreadsAPIBaseURL,
		client:  &http.Client{Timeout: cfg.Scheduler.GatewayTimeout},
		now:     time.Now,
	}
}

func (g *threadsGateway) CreateContainer(ctx context.Context, creds Credentials, body string, mediaURLs []string) (string, error) {
	if err := checkCredentials(creds, g.now()); err != nil {
		return "", err
	}

	switch len(mediaURLs) {
	case 0:
		if body == "" {
			return "", &Error{Kind: KindRemoteRejected, Detail: "text thread requires a body"}
		}
		return g.createItemContainer(ctx, creds, map[string]interface{}{
			"media_type":   "TEXT",
			"text":         body,
			"access_token": creds.AccessToken,
		})
	case 1:
		return g.createItemContainer(ctx, creds, map[string]interface{}{
			"media_type":   "IMAGE",
			"image_url":    mediaURLs[0],
			"text":         body,
			"access_token": creds.AccessToken,
		})
	default:
		return g.createCarouselContainer(ctx, creds, body, mediaURLs)
	}
}

func (g *threadsGateway) createCarouselContainer(ctx context.Context, creds Credentials, body string, mediaURLs []string) (string, error) {
	children := make([]string, 0, len(mediaURLs))
	for _, mediaURL := range mediaURLs {
		childID, err := g.createItemContainer(ctx, creds, map[string]interface{}{
			"media_type":       "IMAGE",
			"image_url":        mediaURL,
			"is_carousel_item": true,
			"access_token":     creds.AccessToken,
		})
		if err != nil {
			return "", err
		}
		children = append(children, childID)
	}

	return g.createItemContainer(ctx, creds, map[string]interface{}{
		"media_type":   "CAROUSEL",
		"text":         body,
		"children":     children,
		"access_token": creds.AccessToken,
	})
}

func (g *threadsGateway) createItemContainer(ctx context.Context, creds Credentials, payload map[string]interface{}) (string, error) {
	url := fmt.Sprintf("%s/v1.0/%s/threads", g.baseURL, creds.ThreadsUserID)

	id, err := g.postForID(ctx, url, payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (g *threadsGateway) PublishContainer(ctx context.Context, creds Credentials, creationID string) (string, error) {
	if err := checkCredentials(creds, g.now()); err != nil {
		return "", err
	}
	if creationID == "" {
		return "", &Error{Kind: KindRemoteRejected, Detail: "missing creation id"}
	}

	url := fmt.Sprintf("%s/v1.0/%s/threads_publish", g.baseURL, creds.ThreadsUserID)
	payload := map[string]interface{}{
		"creation_id":  creationID,
		"access_token": creds.AccessToken,
	}

	id, err := g.postForID(ctx, url, payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

// postForID issues one JSON POST and decodes the {"id": "..."} success shape.
// Everything that goes wrong is translated into a typed *Error here so callers
// never see raw transport or remote payloads.
func (g *threadsGateway) postForID(ctx context.Context, url string, payload map[string]interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Error{Kind: KindRemoteRejected, Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", &Error{Kind: KindRemoteRejected, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", &Error{Kind: KindTransient, Detail: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindTransient, Detail: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyErrorResponse(resp.StatusCode, respBody)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &Error{Kind: KindRemoteRejected, Detail: fmt.Sprintf("error parsing response: %v", err)}
	}
	if result.ID == "" {
		return "", &Error{Kind: KindRemoteRejected, Detail: "no media ID returned from Threads"}
	}

	return result.ID, nil
}

// remoteError is the Graph API error envelope.
type remoteError struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		IsTransient  bool   `json:"is_transient"`
		FbtraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

func classifyErrorResponse(statusCode int, body []byte) *Error {
	if statusCode >= http.StatusInternalServerError {
		return &Error{Kind: KindTransient, Detail: fmt.Sprintf("remote status %d", statusCode)}
	}

	var re remoteError
	if err := json.Unmarshal(body, &re); err == nil && re.Error.Message != "" {
		switch {
		case re.Error.Type == "OAuthException" || re.Error.Code == 190:
			return &Error{Kind: KindAuthExpired, Detail: re.Error.Message}
		case re.Error.IsTransient:
			return &Error{Kind: KindTransient, Detail: re.Error.Message}
		default:
			return &Error{Kind: KindRemoteRejected, Detail: re.Error.Message}
		}
	}

	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return &Error{Kind: KindAuthExpired, Detail: fmt.Sprintf("remote status %d", statusCode)}
	}
	return &Error{Kind: KindRemoteRejected, Detail: fmt.Sprintf("remote status %d: %s", statusCode, body)}
}

func checkCredentials(creds Credentials, now time.Time) error {
	if creds.AccessToken == "" {
		return &Error{Kind: KindAuthExpired, Detail: "account has no access token"}
	}
	if !creds.ExpiresAt.IsZero() && now.After(creds.ExpiresAt) {
		return &Error{Kind: KindAuthExpired, Detail: "access token expired"}
	}
	return nil
}
