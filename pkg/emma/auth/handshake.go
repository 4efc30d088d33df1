package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State string

const (
	StateNotRequested         State = "NOT_REQUESTED"
	StateRequesting           State = "REQUESTING"
	StateAwaitingVerification State = "AWAITING_VERIFICATION"
	StateAuthenticated        State = "AUTHENTICATED"
	StateFailed               State = "FAILED"
)

// DefaultVerificationTimeout bounds how long a handshake waits for the
// browser step before failing.
const DefaultVerificationTimeout = 10 * time.Minute

// cancelGrace bounds how long Login waits for the classified error after its
// context ended before the handshake settled.
var cancelGrace = time.Second

func (s State) Terminal() bool {
	return s == StateAuthenticated || s == StateFailed
}

// Transition is emitted to state listeners on every state change. URL is set
// when entering StateAwaitingVerification, Err when entering StateFailed.
type Transition struct {
	From State
	To   State
	URL  string
	Err  error
}

type Option func(*Handshake)

// WithBrowser replaces the browser launcher. A nil launcher skips the
// hand-off; the URL is still announced to state listeners.
func WithBrowser(launch BrowserLauncher) Option {
	return func(h *Handshake) {
		h.browser = launch
	}
}

// WithTimeout bounds the wait for verification. Zero waits indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(h *Handshake) {
		h.timeout = d
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(h *Handshake) {
		if log != nil {
			h.log = log
		}
	}
}

// WithStateListener registers fn for state changes. Listeners run
// synchronously in transition order and must not call back into the
// Handshake.
func WithStateListener(fn func(Transition)) Option {
	return func(h *Handshake) {
		if fn != nil {
			h.listeners = append(h.listeners, fn)
		}
	}
}

// WithWarningHandler receives non-fatal problems such as a failed browser
// launch.
func WithWarningHandler(fn func(error)) Option {
	return func(h *Handshake) {
		h.warn = fn
	}
}

// Handshake drives one login attempt from ticket request to a persisted
// credential. Exactly one of onExit and onError is invoked, exactly once,
// unless the host closes the handshake first.
type Handshake struct {
	id      string
	remote  Remote
	store   CredentialStore
	onExit  func()
	onError func(error)

	browser   BrowserLauncher
	timeout   time.Duration
	log       *zap.SugaredLogger
	listeners []func(Transition)
	warn      func(error)

	mu      sync.Mutex
	state   State
	settled bool
	closed  bool
	ended   bool
	ctx     context.Context
	cancel  context.CancelFunc
	sub     Subscription
	timer   *time.Timer
	done    chan struct{}
}

func NewHandshake(remote Remote, store CredentialStore, onExit func(), onError func(error), opts ...Option) *Handshake {
	h := &Handshake{
		id:      uuid.NewString(),
		remote:  remote,
		store:   store,
		onExit:  onExit,
		onError: onError,
		browser: OpenBrowser,
		timeout: DefaultVerificationTimeout,
		log:     zap.NewNop().Sugar(),
		state:   StateNotRequested,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With("attempt", h.id)
	return h
}

func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done is closed once the handshake reached a terminal state or was closed.
func (h *Handshake) Done() <-chan struct{} {
	return h.done
}

// Start requests the ticket and returns immediately; the remaining legs run
// in the background. Only the first call has any effect.
func (h *Handshake) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.state != StateNotRequested || h.closed {
		h.mu.Unlock()
		return ErrAlreadyStarted
	}
	h.ctx, h.cancel = context.WithCancel(ctx)
	h.transitionLocked(StateRequesting, "", nil)
	h.mu.Unlock()

	go h.run(h.ctx)
	return nil
}

// Close tears the handshake down and releases the subscription. No callback
// fires for a handshake closed before it settled.
func (h *Handshake) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	sub := h.detachLocked()
	if !h.settled {
		h.settled = true
		h.endLocked()
	}
	cancel := h.cancel
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		return sub.Close()
	}
	return nil
}

func (h *Handshake) run(ctx context.Context) {
	ticket, err := h.remote.RequestTicket(ctx)
	if err == nil && (ticket.URL == "" || ticket.Secret == "") {
		err = ErrInvalidTicket
	}
	if err != nil {
		h.fail(&Error{Kind: ErrTicketRequestFailed, Err: err})
		return
	}

	h.mu.Lock()
	if h.settled {
		h.mu.Unlock()
		return
	}
	h.transitionLocked(StateAwaitingVerification, ticket.URL, nil)
	if h.timeout > 0 {
		h.timer = time.AfterFunc(h.timeout, h.expire)
	}
	h.mu.Unlock()

	h.launchBrowser(ticket.URL)

	sub, err := h.remote.SubscribeVerification(ctx, ticket.Secret, SubscriptionHandler{
		Next:  h.handleVerification,
		Error: h.handleChannelError,
	})
	if err != nil {
		h.fail(&Error{Kind: ErrVerificationChannel, Err: err})
		return
	}

	h.mu.Lock()
	if h.settled {
		h.mu.Unlock()
		_ = sub.Close()
		return
	}
	h.sub = sub
	h.mu.Unlock()

	select {
	case <-ctx.Done():
		h.handleChannelError(ctx.Err())
	case <-h.done:
	}
}

func (h *Handshake) launchBrowser(url string) {
	if h.browser == nil {
		return
	}
	if err := h.browser(url); err != nil {
		if h.warn != nil {
			h.log.Debugw("Failed to open browser", "url", url, "error", err)
			h.warn(err)
			return
		}
		h.log.Warnw("Failed to open browser, the verification URL has to be opened manually", "url", url, "error", err)
	}
}

func (h *Handshake) handleVerification(v Verification) {
	h.mu.Lock()
	if h.settled || h.state != StateAwaitingVerification {
		h.mu.Unlock()
		h.log.Debugw("Ignoring verification outside of the wait", "state", h.State())
		return
	}
	h.settled = true
	sub := h.detachLocked()
	ctx := h.ctx
	h.mu.Unlock()

	if sub != nil {
		_ = sub.Close()
	}
	if v.Token == "" {
		h.finish(StateFailed, &Error{Kind: ErrVerificationChannel, Err: ErrEmptyToken})
		return
	}
	h.log.Debugw("Ticket verified", "userID", v.User.ID)

	if err := h.store.Save(context.WithoutCancel(ctx), v.Token); err != nil {
		h.finish(StateFailed, &Error{Kind: ErrCredentialPersistence, Err: err})
		return
	}
	h.finish(StateAuthenticated, nil)
}

func (h *Handshake) handleChannelError(err error) {
	if err == nil {
		err = ErrSubscriptionClosed
	}
	h.fail(&Error{Kind: ErrVerificationChannel, Err: err})
}

func (h *Handshake) expire() {
	h.fail(&Error{Kind: ErrVerificationChannel, Err: ErrVerificationTimeout})
}

func (h *Handshake) fail(err error) {
	h.mu.Lock()
	if h.settled {
		h.mu.Unlock()
		h.log.Debugw("Ignoring error after the handshake settled", "error", err)
		return
	}
	h.settled = true
	sub := h.detachLocked()
	h.mu.Unlock()

	if sub != nil {
		_ = sub.Close()
	}
	h.finish(StateFailed, err)
}

// finish is only reached by the goroutine that settled the handshake.
func (h *Handshake) finish(to State, err error) {
	h.mu.Lock()
	h.transitionLocked(to, "", err)
	h.endLocked()
	closed := h.closed
	cancel := h.cancel
	h.mu.Unlock()

	cancel()
	if closed {
		return
	}
	if to == StateAuthenticated {
		h.log.Infow("Authenticated")
		if h.onExit != nil {
			h.onExit()
		}
		return
	}
	h.log.Debugw("Handshake failed", "error", err)
	if h.onError != nil {
		h.onError(err)
	}
}

func (h *Handshake) endLocked() {
	if !h.ended {
		h.ended = true
		close(h.done)
	}
}

func (h *Handshake) detachLocked() Subscription {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	sub := h.sub
	h.sub = nil
	return sub
}

func (h *Handshake) transitionLocked(to State, url string, err error) {
	from := h.state
	h.state = to
	h.log.Debugw("Handshake state changed", "from", from, "to", to)
	t := Transition{From: from, To: to, URL: url, Err: err}
	for _, fn := range h.listeners {
		fn(t)
	}
}

// Login runs a handshake to completion and returns its outcome.
func Login(ctx context.Context, remote Remote, store CredentialStore, opts ...Option) error {
	result := make(chan error, 1)
	h := NewHandshake(remote, store,
		func() { result <- nil },
		func(err error) { result <- err },
		opts...)
	defer func() {
		_ = h.Close()
	}()
	if err := h.Start(ctx); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
	}
	// the handshake observes ctx too; prefer its classified error
	select {
	case err := <-result:
		return err
	case <-time.After(cancelGrace):
	}
	// a consumed verification always reports, even when the save is slow
	if h.settledOpen() {
		return <-result
	}
	return ctx.Err()
}

func (h *Handshake) settledOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.settled && !h.closed
}
