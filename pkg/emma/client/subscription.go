package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/emma-cli/emma/pkg/emma/auth"
)

const graphQLWSProtocol = "graphql-ws"

// graphql-ws message types
const (
	msgConnectionInit      = "connection_init"
	msgConnectionAck       = "connection_ack"
	msgConnectionError     = "connection_error"
	msgConnectionTerminate = "connection_terminate"
	msgKeepAlive           = "ka"
	msgStart               = "start"
	msgStop                = "stop"
	msgData                = "data"
	msgError               = "error"
	msgComplete            = "complete"
)

const verificationSubscription = `subscription Verification($secret: String!) {
  token(secret: $secret) {
    token
    user {
      id
      name
    }
  }
}`

var ErrSubscriptionCompleted = errors.New("subscription completed without a verification")

type operationMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type verificationPayload struct {
	Data *struct {
		Token *auth.Verification `json:"token"`
	} `json:"data"`
	Errors []graphQLErrorEntry `json:"errors,omitempty"`
}

type subscription struct {
	id      string
	conn    *websocket.Conn
	handler auth.SubscriptionHandler
	log     *zap.SugaredLogger

	writeMu   sync.Mutex
	delivered sync.Once
	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
}

// SubscribeVerification opens the verification subscription for secret.
// The handler receives at most one call; the subscription is terminal
// afterwards.
func (c *Client) SubscribeVerification(ctx context.Context, secret string, handler auth.SubscriptionHandler) (auth.Subscription, error) {
	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to open subscription (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("failed to open subscription: %w", err)
	}

	s := &subscription{
		id:      uuid.NewString(),
		conn:    conn,
		handler: handler,
		done:    make(chan struct{}),
	}
	s.log = c.log.With("subscription", s.id)

	if err := s.acknowledge(c.timeout); err != nil {
		_ = conn.Close()
		return nil, err
	}
	payload, err := json.Marshal(graphQLRequest{
		Query:         verificationSubscription,
		OperationName: "Verification",
		Variables:     map[string]any{"secret": secret},
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to marshal subscription: %w", err)
	}
	if err := s.write(operationMessage{ID: s.id, Type: msgStart, Payload: payload}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to start subscription: %w", err)
	}
	s.log.Debugw("Verification subscription started", "server", c.wsURL.String())

	go s.read()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

func (s *subscription) acknowledge(timeout time.Duration) error {
	if err := s.write(operationMessage{Type: msgConnectionInit}); err != nil {
		return fmt.Errorf("failed to initialise subscription: %w", err)
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(timeout))
	defer func() {
		_ = s.conn.SetReadDeadline(time.Time{})
	}()
	for {
		var msg operationMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("subscription not acknowledged: %w", err)
		}
		switch msg.Type {
		case msgConnectionAck:
			return nil
		case msgKeepAlive:
			continue
		case msgConnectionError:
			return fmt.Errorf("subscription rejected: %s", payloadMessage(msg.Payload))
		default:
			return fmt.Errorf("unexpected %q before connection_ack", msg.Type)
		}
	}
}

func (s *subscription) read() {
	defer close(s.done)
	for {
		var msg operationMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			s.fail(fmt.Errorf("subscription connection lost: %w", err))
			return
		}
		if msg.ID != "" && msg.ID != s.id {
			continue
		}
		switch msg.Type {
		case msgKeepAlive, msgConnectionAck:
			continue
		case msgData:
			var payload verificationPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				s.fail(fmt.Errorf("failed to decode verification: %w", err))
				return
			}
			if len(payload.Errors) > 0 {
				s.fail(newGraphQLError(payload.Errors))
				return
			}
			if payload.Data == nil || payload.Data.Token == nil {
				s.fail(errors.New("verification payload carried no token"))
				return
			}
			s.deliver(*payload.Data.Token)
			return
		case msgError, msgConnectionError:
			s.fail(fmt.Errorf("subscription error: %s", payloadMessage(msg.Payload)))
			return
		case msgComplete:
			s.fail(ErrSubscriptionCompleted)
			return
		default:
			s.log.Debugw("Ignoring subscription message", "type", msg.Type)
		}
	}
}

func (s *subscription) deliver(v auth.Verification) {
	s.delivered.Do(func() {
		if s.closed.Load() || s.handler.Next == nil {
			return
		}
		s.handler.Next(v)
	})
}

func (s *subscription) fail(err error) {
	s.delivered.Do(func() {
		if s.closed.Load() || s.handler.Error == nil {
			return
		}
		s.handler.Error(err)
	})
}

// Close stops the operation and closes the connection. It does not wait for
// the reader, so handlers may call it.
func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		_ = s.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = s.write(operationMessage{ID: s.id, Type: msgStop})
		_ = s.write(operationMessage{Type: msgConnectionTerminate})
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}

func (s *subscription) write(msg operationMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}

func payloadMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "no details"
	}
	var single graphQLErrorEntry
	if err := json.Unmarshal(raw, &single); err == nil && single.Message != "" {
		return single.Message
	}
	var list []graphQLErrorEntry
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return newGraphQLError(list).Error()
	}
	return string(raw)
}
