package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/kee711/threads-saas-sub001/configs"
)

func testCredentials() Credentials {
	return Credentials{
		ThreadsUserID: "17841400000000000",
		AccessToken:   "test-token",
	}
}

func newTestGateway(baseURL string) ThreadsGateway {
	cfg := config.Config{ThreadsAPIBaseURL: baseURL}
	cfg.Scheduler.GatewayTimeout = 2 * time.Second
	return NewThreadsGateway(cfg)
}

func kindOf(t *testing.T, err error) ErrorKind {
	t.Helper()
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	return gerr.Kind
}

func TestCreateContainerText(t *testing.T) {
	var gotPayload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1.0/17841400000000000/threads", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		fmt.Fprint(w, `{"id": "creation-1"}`)
	}))
	defer srv.Close()

	id, err := newTestGateway(srv.URL).CreateContainer(context.Background(), testCredentials(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "creation-1", id)
	assert.Equal(t, "TEXT", gotPayload["media_type"])
	assert.Equal(t, "hello", gotPayload["text"])
	assert.Equal(t, "test-token", gotPayload["access_token"])
}

func TestCreateContainerSingleImage(t *testing.T) {
	var gotPayload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		fmt.Fprint(w, `{"id": "creation-2"}`)
	}))
	defer srv.Close()

	id, err := newTestGateway(srv.URL).CreateContainer(context.Background(), testCredentials(), "caption", []string{"https://cdn.example.com/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "creation-2", id)
	assert.Equal(t, "IMAGE", gotPayload["media_type"])
	assert.Equal(t, "https://cdn.example.com/a.jpg", gotPayload["image_url"])
}

func TestCreateContainerCarousel(t *testing.T) {
	var payloads []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		payloads = append(payloads, p)
		fmt.Fprintf(w, `{"id": "creation-%d"}`, len(payloads))
	}))
	defer srv.Close()

	id, err := newTestGateway(srv.URL).CreateContainer(context.Background(), testCredentials(), "album", []string{
		"https://cdn.example.com/a.jpg",
		"https://cdn.example.com/b.jpg",
	})
	require.NoError(t, err)

	// Two child containers, then the carousel referencing both.
	require.Len(t, payloads, 3)
	assert.Equal(t, "creation-3", id)
	for _, child := range payloads[:2] {
		assert.Equal(t, "IMAGE", child["media_type"])
		assert.Equal(t, true, child["is_carousel_item"])
	}
	carousel := payloads[2]
	assert.Equal(t, "CAROUSEL", carousel["media_type"])
	assert.Equal(t, []interface{}{"creation-1", "creation-2"}, carousel["children"])
}

func TestCreateContainerEmptyTextRejected(t *testing.T) {
	g := newTestGateway("http://unreachable.invalid")
	_, err := g.CreateContainer(context.Background(), testCredentials(), "", nil)
	assert.Equal(t, KindRemoteRejected, kindOf(t, err))
}

func TestPublishContainer(t *testing.T) {
	var gotPayload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1.0/17841400000000000/threads_publish", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		fmt.Fprint(w, `{"id": "media-1"}`)
	}))
	defer srv.Close()

	id, err := newTestGateway(srv.URL).PublishContainer(context.Background(), testCredentials(), "creation-1")
	require.NoError(t, err)
	assert.Equal(t, "media-1", id)
	assert.Equal(t, "creation-1", gotPayload["creation_id"])
}

func TestPublishContainerMissingCreationID(t *testing.T) {
	g := newTestGateway("http://unreachable.invalid")
	_, err := g.PublishContainer(context.Background(), testCredentials(), "")
	assert.Equal(t, KindRemoteRejected, kindOf(t, err))
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
	}{
		{
			name:     "oauth exception",
			status:   http.StatusBadRequest,
			body:     `{"error": {"message": "Error validating access token", "type": "OAuthException", "code": 190}}`,
			wantKind: KindAuthExpired,
		},
		{
			name:     "transient remote error",
			status:   http.StatusBadRequest,
			body:     `{"error": {"message": "Please retry your request later", "type": "ApiException", "code": 2, "is_transient": true}}`,
			wantKind: KindTransient,
		},
		{
			name:     "content rejected",
			status:   http.StatusBadRequest,
			body:     `{"error": {"message": "Invalid parameter", "type": "ApiException", "code": 100}}`,
			wantKind: KindRemoteRejected,
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     `oops`,
			wantKind: KindTransient,
		},
		{
			name:     "bad gateway",
			status:   http.StatusBadGateway,
			body:     ``,
			wantKind: KindTransient,
		},
		{
			name:     "unauthorized without envelope",
			status:   http.StatusUnauthorized,
			body:     `nope`,
			wantKind: KindAuthExpired,
		},
		{
			name:     "unclassified client error",
			status:   http.StatusUnprocessableEntity,
			body:     `{"weird": true}`,
			wantKind: KindRemoteRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := newTestGateway(srv.URL).CreateContainer(context.Background(), testCredentials(), "hello", nil)
			assert.Equal(t, tt.wantKind, kindOf(t, err))
		})
	}
}

func TestNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	_, err := newTestGateway(srv.URL).CreateContainer(context.Background(), testCredentials(), "hello", nil)
	assert.Equal(t, KindTransient, kindOf(t, err))
}

func TestExpiredCredentialsRejectedLocally(t *testing.T) {
	var remoteCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remoteCalls++
		fmt.Fprint(w, `{"id": "creation-1"}`)
	}))
	defer srv.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := newTestGateway(srv.URL).(*threadsGateway)
	g.now = func() time.Time { return now }

	// Expired relative to the gateway's clock: rejected before any request.
	creds := testCredentials()
	creds.ExpiresAt = now.Add(-time.Second)
	_, err := g.CreateContainer(context.Background(), creds, "hello", nil)
	assert.Equal(t, KindAuthExpired, kindOf(t, err))
	assert.Equal(t, 0, remoteCalls)

	creds.AccessToken = ""
	creds.ExpiresAt = time.Time{}
	_, err = g.PublishContainer(context.Background(), creds, "creation-1")
	assert.Equal(t, KindAuthExpired, kindOf(t, err))
	assert.Equal(t, 0, remoteCalls)

	// Still valid at the clock's instant: the call goes through.
	creds = testCredentials()
	creds.ExpiresAt = now.Add(time.Second)
	id, err := g.CreateContainer(context.Background(), creds, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "creation-1", id)
	assert.Equal(t, 1, remoteCalls)
}

func TestMissingIDInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	_, err := newTestGateway(srv.URL).CreateContainer(context.Background(), testCredentials(), "hello", nil)
	assert.Equal(t, KindRemoteRejected, kindOf(t, err))
}
