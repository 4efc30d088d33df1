package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type graphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage     `json:"data"`
	Errors []graphQLErrorEntry `json:"errors,omitempty"`
}

type graphQLErrorEntry struct {
	Message string `json:"message"`
}

// GraphQLError carries the errors list of a GraphQL response.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

func newGraphQLError(entries []graphQLErrorEntry) *GraphQLError {
	msgs := make([]string, 0, len(entries))
	for _, entry := range entries {
		msgs = append(msgs, entry.Message)
	}
	return &GraphQLError{Messages: msgs}
}

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, req graphQLRequest, out any) error {
	c.log.Debugw("GraphQL request", "operation", req.OperationName, "server", c.baseURL.String())
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post(c.baseURL.String())
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 400 {
		return decodeError(resp.StatusCode(), resp.Status(), resp.Body())
	}

	var payload graphQLResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(payload.Errors) > 0 {
		return newGraphQLError(payload.Errors)
	}
	if len(payload.Data) == 0 || string(payload.Data) == "null" {
		return errors.New("response carried no data")
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(payload.Data, out)
}

func decodeError(statusCode int, status string, body []byte) error {
	var payload graphQLResponse
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil && len(payload.Errors) > 0 {
		return &HTTPError{StatusCode: statusCode, Message: newGraphQLError(payload.Errors).Error()}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = status
	}
	return &HTTPError{StatusCode: statusCode, Message: msg}
}
