package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/emma-cli/emma/pkg/emma/auth"
	"github.com/emma-cli/emma/pkg/metrics"
)

func newLoginCommand() *cobra.Command {
	var (
		noBrowser bool
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in through the browser",
		Long: `Request an authentication ticket, open its verification URL in the browser
and wait until the ticket was verified. The resulting credential is stored in
the configured token storage.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			if !cmd.Flags().Changed("timeout") {
				if timeout, err = rt.cfg.VerificationTimeout(); err != nil {
					return err
				}
			}
			if timeout < 0 {
				return fmt.Errorf("invalid timeout: %s", timeout)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runLogin(ctx, rt, rt.Browser(noBrowser), timeout)
		},
	}
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the verification URL instead of opening a browser")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "How long to wait for the verification (0 waits indefinitely, default from config)")
	return cmd
}

func runLogin(ctx context.Context, rt *runtimeState, browser auth.BrowserLauncher, timeout time.Duration) error {
	creds, err := rt.Credentials()
	if err != nil {
		return err
	}
	remote, err := buildClient(ctx, rt, creds)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	status := &statusPrinter{w: rt.Writer(), browser: browser != nil}
	err = auth.Login(ctx, remote, creds,
		auth.WithBrowser(browser),
		auth.WithTimeout(timeout),
		auth.WithLogger(rt.Logger()),
		auth.WithStateListener(status.Print),
		auth.WithStateListener(recorder.Observe),
		auth.WithWarningHandler(func(err error) {
			_, _ = fmt.Fprintf(rt.ErrWriter(), "Could not open a browser (%v), open the URL above manually.\n", err)
		}),
	)

	if path := rt.cfg.Settings.MetricsTextfile; path != "" {
		if writeErr := recorder.WriteTextfile(path); writeErr != nil {
			rt.Logger().Warnw("Failed to write metrics textfile", "path", path, "error", writeErr)
		}
	}
	return err
}

// statusPrinter renders handshake transitions as the user facing progress
// lines of the login command.
type statusPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	browser bool
}

func (p *statusPrinter) Print(t auth.Transition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch t.To {
	case auth.StateRequesting:
		_, _ = fmt.Fprintln(p.w, "Requesting authentication ticket...")
	case auth.StateAwaitingVerification:
		if p.browser {
			_, _ = fmt.Fprintln(p.w, "Opening the browser to verify the ticket. If it does not open, visit:")
		} else {
			_, _ = fmt.Fprintln(p.w, "Open the following URL to verify the ticket:")
		}
		_, _ = fmt.Fprintf(p.w, "\n    %s\n\n", t.URL)
		_, _ = fmt.Fprintln(p.w, "Waiting for ticket verification...")
	case auth.StateAuthenticated:
		_, _ = fmt.Fprintln(p.w, "You have successfully logged in!")
	case auth.StateFailed:
		_, _ = fmt.Fprintln(p.w, "Something went wrong.")
	}
}
