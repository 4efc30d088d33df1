package cmd

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/spf13/cobra"

	"github.com/emma-cli/emma/pkg/emma/output"
)

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with emma",
	}
	cmd.AddCommand(
		newLoginCommand(),
		newAuthStatusCommand(),
		newAuthLogoutCommand(),
	)
	return cmd
}

type authStatus struct {
	Authenticated bool       `json:"authenticated" yaml:"authenticated"`
	Server        string     `json:"server" yaml:"server"`
	Storage       string     `json:"storage" yaml:"storage"`
	Subject       string     `json:"subject,omitempty" yaml:"subject,omitempty"`
	Name          string     `json:"name,omitempty" yaml:"name,omitempty"`
	IssuedAt      *time.Time `json:"issuedAt,omitempty" yaml:"issuedAt,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
	Expired       bool       `json:"expired,omitempty" yaml:"expired,omitempty"`
}

type tokenClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// describeToken fills in what can be read from a JWT credential. The
// signature is not checked; the server remains the authority on validity.
func describeToken(token string, status *authStatus, now time.Time) {
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return
	}
	status.Subject = claims.Subject
	status.Name = claims.Name
	if claims.IssuedAt != nil {
		t := claims.IssuedAt.UTC()
		status.IssuedAt = &t
	}
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.UTC()
		status.ExpiresAt = &t
		status.Expired = now.After(t)
	}
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format, err := output.ParseFormat(rt.OutputFormat())
			if err != nil {
				return err
			}
			creds, err := rt.Credentials()
			if err != nil {
				return err
			}
			token, ok, err := creds.Load(cmd.Context())
			if err != nil {
				return err
			}
			status := authStatus{
				Authenticated: ok,
				Server:        rt.cfg.Server.URL,
				Storage:       rt.TokenStorage(),
			}
			if ok {
				describeToken(token, &status, time.Now())
			}

			if format != output.FormatText {
				return output.WriteObject(rt.Writer(), format, status)
			}
			if !ok {
				_, _ = fmt.Fprintln(rt.Writer(), "Not authenticated")
				return nil
			}
			fields := []output.Field{
				{Name: "Server", Value: status.Server},
				{Name: "Storage", Value: status.Storage},
				{Name: "Subject", Value: status.Subject},
			}
			if status.Name != "" {
				fields = append(fields, output.Field{Name: "Name", Value: status.Name})
			}
			if status.ExpiresAt != nil {
				expires := output.FormatTime(*status.ExpiresAt)
				if status.Expired {
					expires += " (expired)"
				}
				fields = append(fields, output.Field{Name: "Expires", Value: expires})
			}
			_, _ = fmt.Fprintln(rt.Writer(), "Authenticated")
			output.WriteFields(rt.Writer(), fields)
			return nil
		},
	}
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			creds, err := rt.Credentials()
			if err != nil {
				return err
			}
			if err := creds.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("failed to remove stored credential: %w", err)
			}
			_, _ = fmt.Fprintln(rt.Writer(), "Logged out")
			return nil
		},
	}
}
