package client

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/emma-cli/emma/pkg/emma/auth"
)

const DefaultTimeout = 30 * time.Second

var _ auth.Remote = (*Client)(nil)

type Client struct {
	baseURL   *url.URL
	wsURL     *url.URL
	token     string
	userAgent string
	timeout   time.Duration
	tlsConfig *tls.Config
	log       *zap.SugaredLogger

	http   *resty.Client
	dialer *websocket.Dialer
}

type Option func(*Client) error

func New(opts ...Option) (*Client, error) {
	c := &Client{
		userAgent: "emma",
		timeout:   DefaultTimeout,
		log:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.baseURL == nil {
		return nil, errors.New("server is required")
	}
	if c.wsURL == nil {
		c.wsURL = subscriptionURL(c.baseURL)
	}

	var transport http.RoundTripper = &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: c.tlsConfig,
	}
	if c.token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token, TokenType: "Bearer"}),
			Base:   transport,
		}
	}
	c.http = resty.NewWithClient(&http.Client{Transport: transport, Timeout: c.timeout}).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", c.userAgent)
	c.dialer = &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		TLSClientConfig:  c.tlsConfig,
		HandshakeTimeout: c.timeout,
		Subprotocols:     []string{graphQLWSProtocol},
	}
	return c, nil
}

func WithServer(server string) Option {
	return func(c *Client) error {
		parsed, err := parseServer(server, "http", "https")
		if err != nil {
			return err
		}
		c.baseURL = parsed
		return nil
	}
}

// WithSubscriptionServer overrides the websocket endpoint, which otherwise
// is the server URL with a ws or wss scheme.
func WithSubscriptionServer(server string) Option {
	return func(c *Client) error {
		if server == "" {
			return nil
		}
		parsed, err := parseServer(server, "ws", "wss")
		if err != nil {
			return err
		}
		c.wsURL = parsed
		return nil
	}
}

// WithToken sends token as bearer credential on GraphQL requests.
func WithToken(token string) Option {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		c.userAgent = userAgent
		return nil
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout <= 0 {
			return fmt.Errorf("invalid timeout: %s", timeout)
		}
		c.timeout = timeout
		return nil
	}
}

func WithTLSConfig(caFile string, insecureSkipTLSVerify bool) Option {
	return func(c *Client) error {
		tlsConfig, err := loadTLSConfig(caFile, insecureSkipTLSVerify)
		if err != nil {
			return err
		}
		c.tlsConfig = tlsConfig
		return nil
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) error {
		if log != nil {
			c.log = log
		}
		return nil
	}
}

func (c *Client) Server() string {
	return c.baseURL.String()
}

func (c *Client) SubscriptionServer() string {
	return c.wsURL.String()
}

func parseServer(server string, schemes ...string) (*url.URL, error) {
	if server == "" {
		return nil, errors.New("server is required")
	}
	parsed, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("invalid server: %w", err)
	}
	for _, scheme := range schemes {
		if parsed.Scheme == scheme && parsed.Host != "" {
			return parsed, nil
		}
	}
	return nil, fmt.Errorf("invalid server %q: expected %v URL", server, schemes)
}

func subscriptionURL(base *url.URL) *url.URL {
	ws := *base
	switch base.Scheme {
	case "https":
		ws.Scheme = "wss"
	default:
		ws.Scheme = "ws"
	}
	return &ws
}

func loadTLSConfig(caFile string, insecure bool) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: insecure}
	if caFile == "" {
		return tlsConfig, nil
	}
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(data); !ok {
		return nil, errors.New("failed to parse CA file")
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}
