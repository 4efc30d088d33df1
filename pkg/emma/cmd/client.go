package cmd

import (
	"context"
	"errors"

	"github.com/emma-cli/emma/pkg/emma/auth"
	"github.com/emma-cli/emma/pkg/emma/client"
	"github.com/emma-cli/emma/pkg/version"
)

// buildClient connects to the configured server. A stored credential, if
// any, is sent along as bearer token.
func buildClient(ctx context.Context, rt *runtimeState, creds auth.Credentials) (*client.Client, error) {
	if err := rt.EnsureConfigLoaded(); err != nil {
		return nil, err
	}
	if rt.cfg.Server.URL == "" {
		return nil, errors.New("server is required")
	}
	timeout, err := rt.cfg.RequestTimeout()
	if err != nil {
		return nil, err
	}
	options := []client.Option{
		client.WithServer(rt.cfg.Server.URL),
		client.WithSubscriptionServer(rt.cfg.Server.SubscriptionURL),
		client.WithUserAgent(version.UserAgent()),
		client.WithTLSConfig(rt.cfg.Server.CAFile, rt.cfg.Server.InsecureSkipTLSVerify),
		client.WithLogger(rt.Logger()),
	}
	if timeout > 0 {
		options = append(options, client.WithTimeout(timeout))
	}
	if creds != nil {
		token, ok, err := creds.Load(ctx)
		if err != nil {
			rt.Logger().Warnw("Ignoring unreadable stored credential", "error", err)
		} else if ok {
			options = append(options, client.WithToken(token))
		}
	}
	return client.New(options...)
}
