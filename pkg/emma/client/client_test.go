package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emma-cli/emma/pkg/emma/auth"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
		wantWS  string
	}{
		{
			name:    "missing server",
			opts:    []Option{},
			wantErr: true,
		},
		{
			name:    "websocket scheme as server",
			opts:    []Option{WithServer("ws://localhost:4000")},
			wantErr: true,
		},
		{
			name:   "plain http derives ws",
			opts:   []Option{WithServer("http://localhost:4000")},
			wantWS: "ws://localhost:4000",
		},
		{
			name:   "https derives wss",
			opts:   []Option{WithServer("https://api.example.com/graphql"), WithToken("tok")},
			wantWS: "wss://api.example.com/graphql",
		},
		{
			name: "explicit subscription server",
			opts: []Option{
				WithServer("https://api.example.com"),
				WithSubscriptionServer("wss://push.example.com/ws"),
			},
			wantWS: "wss://push.example.com/ws",
		},
		{
			name:    "invalid subscription server",
			opts:    []Option{WithServer("https://api.example.com"), WithSubscriptionServer("https://push.example.com")},
			wantErr: true,
		},
		{
			name:    "invalid timeout",
			opts:    []Option{WithServer("https://api.example.com"), WithTimeout(0)},
			wantErr: true,
		},
		{
			name:    "missing CA file",
			opts:    []Option{WithServer("https://api.example.com"), WithTLSConfig("/nonexistent/ca.pem", false)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				require.Nil(t, client)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, client)
			assert.Equal(t, tt.wantWS, client.SubscriptionServer())
		})
	}
}

func TestRequestTicket(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer stored-token", r.Header.Get("Authorization"))
		require.Equal(t, "test-agent", r.Header.Get("User-Agent"))

		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Ticket", req.OperationName)
		assert.Contains(t, req.Query, "getAuthenticationTicket")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"getAuthenticationTicket": map[string]string{
					"url":    "https://auth.example/v/abc",
					"secret": "s1",
				},
			},
		})
	}))
	defer server.Close()

	client, err := New(
		WithServer(server.URL),
		WithToken("stored-token"),
		WithUserAgent("test-agent"),
	)
	require.NoError(t, err)

	ticket, err := client.RequestTicket(context.Background())
	require.NoError(t, err)
	assert.Equal(t, auth.Ticket{URL: "https://auth.example/v/abc", Secret: "s1"}, ticket)
}

func TestRequestTicket_NoTokenSendsNoAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":{"getAuthenticationTicket":{"url":"u","secret":"s"}}}`))
	}))
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)
	_, err = client.RequestTicket(context.Background())
	require.NoError(t, err)
}

func TestRequestTicket_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "graphql errors",
			status: http.StatusOK,
			body:   `{"data":null,"errors":[{"message":"rate limited"},{"message":"try later"}]}`,
			check: func(t *testing.T, err error) {
				var gqlErr *GraphQLError
				require.ErrorAs(t, err, &gqlErr)
				assert.Equal(t, []string{"rate limited", "try later"}, gqlErr.Messages)
				assert.Equal(t, "graphql: rate limited; try later", err.Error())
			},
		},
		{
			name:   "http error with plain body",
			status: http.StatusBadGateway,
			body:   "upstream down",
			check: func(t *testing.T, err error) {
				var httpErr *HTTPError
				require.ErrorAs(t, err, &httpErr)
				assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
				assert.Equal(t, "request failed (502): upstream down", err.Error())
			},
		},
		{
			name:   "http error with graphql body",
			status: http.StatusBadRequest,
			body:   `{"errors":[{"message":"bad query"}]}`,
			check: func(t *testing.T, err error) {
				var httpErr *HTTPError
				require.ErrorAs(t, err, &httpErr)
				assert.Contains(t, httpErr.Message, "bad query")
			},
		},
		{
			name:   "missing ticket",
			status: http.StatusOK,
			body:   `{"data":{"getAuthenticationTicket":null}}`,
			check: func(t *testing.T, err error) {
				assert.EqualError(t, err, "response carried no ticket")
			},
		},
		{
			name:   "no data",
			status: http.StatusOK,
			body:   `{}`,
			check: func(t *testing.T, err error) {
				assert.EqualError(t, err, "response carried no data")
			},
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `<html>`,
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "failed to decode response")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := New(WithServer(server.URL))
			require.NoError(t, err)
			_, err = client.RequestTicket(context.Background())
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestRequestTicket_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the server only sees the client go away once the body was read
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.RequestTicket(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
