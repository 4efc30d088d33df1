package auth

import "errors"

var (
	ErrTicketRequestFailed   = errors.New("ticket request failed")
	ErrVerificationChannel   = errors.New("verification channel error")
	ErrCredentialPersistence = errors.New("credential persistence failed")

	ErrAlreadyStarted      = errors.New("handshake already started")
	ErrInvalidTicket       = errors.New("ticket is missing url or secret")
	ErrVerificationTimeout = errors.New("timed out waiting for verification")
	ErrSubscriptionClosed  = errors.New("verification subscription closed")
	ErrEmptyToken          = errors.New("verification carried no token")
)

// Error is the terminal failure of a handshake. Kind is one of
// ErrTicketRequestFailed, ErrVerificationChannel or ErrCredentialPersistence;
// both Kind and the originating cause match with errors.Is.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
