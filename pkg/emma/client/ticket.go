package client

import (
	"context"
	"errors"

	"github.com/emma-cli/emma/pkg/emma/auth"
)

const ticketMutation = `mutation Ticket {
  getAuthenticationTicket {
    url
    secret
  }
}`

// RequestTicket asks the API for a single-use authentication ticket.
func (c *Client) RequestTicket(ctx context.Context) (auth.Ticket, error) {
	var data struct {
		Ticket *auth.Ticket `json:"getAuthenticationTicket"`
	}
	if err := c.do(ctx, graphQLRequest{Query: ticketMutation, OperationName: "Ticket"}, &data); err != nil {
		return auth.Ticket{}, err
	}
	if data.Ticket == nil {
		return auth.Ticket{}, errors.New("response carried no ticket")
	}
	c.log.Debugw("Received authentication ticket", "url", data.Ticket.URL)
	return *data.Ticket, nil
}
