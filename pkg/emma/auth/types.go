package auth

import (
	"context"
	"fmt"
)

// Ticket is issued once per handshake. The secret correlates the
// verification subscription and must never be logged or displayed.
type Ticket struct {
	URL    string `json:"url"`
	Secret string `json:"secret"`
}

func (t Ticket) String() string {
	return fmt.Sprintf("Ticket{URL:%s}", t.URL)
}

func (t Ticket) GoString() string {
	return t.String()
}

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Verification is announced once the user completed the browser step.
type Verification struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Remote is the API side of the handshake.
type Remote interface {
	RequestTicket(ctx context.Context) (Ticket, error)
	SubscribeVerification(ctx context.Context, secret string, handler SubscriptionHandler) (Subscription, error)
}

// SubscriptionHandler receives at most one verification or channel error.
type SubscriptionHandler struct {
	Next  func(Verification)
	Error func(error)
}

// Subscription is the handle of an open verification channel.
type Subscription interface {
	Close() error
}

// BrowserLauncher opens url in the user's browser without waiting for it.
type BrowserLauncher func(url string) error
