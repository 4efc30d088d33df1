// Package client implements the emma API transport: GraphQL operations over
// HTTP and subscriptions over the graphql-ws websocket protocol.
package client
