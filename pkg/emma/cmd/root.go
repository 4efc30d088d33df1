package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/emma-cli/emma/pkg/emma/auth"
	"github.com/emma-cli/emma/pkg/emma/config"
	"github.com/emma-cli/emma/pkg/system"
)

type Config struct {
	ConfigPath     string
	CredentialPath string
	OutputWriter   io.Writer
	ErrorWriter    io.Writer
	// Browser replaces the platform browser launcher.
	Browser auth.BrowserLauncher
}

type runtimeState struct {
	configPath           string
	credentialPath       string
	cfg                  *config.Config
	outputFormat         string
	serverOverride       string
	tokenStorageOverride string
	noBrowser            bool
	nonInteractive       bool
	verbose              bool
	writer               io.Writer
	errWriter            io.Writer
	browser              auth.BrowserLauncher
	log                  *zap.SugaredLogger
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath:     config.DefaultConfigPath(),
		CredentialPath: config.DefaultCredentialPath(),
		OutputWriter:   os.Stdout,
		ErrorWriter:    os.Stderr,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath:     cfg.ConfigPath,
		credentialPath: cfg.CredentialPath,
		writer:         cfg.OutputWriter,
		errWriter:      cfg.ErrorWriter,
		browser:        cfg.Browser,
	}

	root := &cobra.Command{
		Use:           "emma",
		Short:         "emma package manager CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.errWriter == nil {
				rt.errWriter = os.Stderr
			}
			if rt.configPath == "" {
				rt.configPath = config.DefaultConfigPath()
			}
			if rt.credentialPath == "" {
				rt.credentialPath = config.DefaultCredentialPath()
			}
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("EMMA_OUTPUT")
			}
			if rt.serverOverride == "" {
				rt.serverOverride = os.Getenv("EMMA_SERVER")
			}
			if rt.tokenStorageOverride == "" {
				rt.tokenStorageOverride = os.Getenv("EMMA_TOKEN_STORAGE")
			}
			if !rt.noBrowser {
				rt.noBrowser = envTrue("EMMA_NO_BROWSER")
			}
			if !rt.nonInteractive {
				rt.nonInteractive = envTrue("EMMA_NON_INTERACTIVE")
			}
			if !rt.verbose {
				rt.verbose = envTrue("EMMA_VERBOSE")
			}
			if rt.log == nil {
				rt.log = system.NewLogger(rt.verbose)
			}

			if cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config" {
				return nil
			}
			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			return rt.EnsureConfigLoaded()
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: text, json, yaml")
	root.PersistentFlags().StringVar(&rt.serverOverride, "server", "", "emma API server URL override")
	root.PersistentFlags().StringVar(&rt.tokenStorageOverride, "token-storage", "", "Token storage backend: keychain or file")
	root.PersistentFlags().BoolVar(&rt.nonInteractive, "non-interactive", false, "Never open a browser, only print the login URL")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging on stderr")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		newLoginCommand(),
		NewAuthCommand(),
		NewConfigCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func envTrue(name string) bool {
	return strings.EqualFold(os.Getenv(name), "true")
}

// EnsureConfigLoaded loads the config file, falling back to defaults when it
// does not exist, and applies the server override.
func (rt *runtimeState) EnsureConfigLoaded() error {
	if rt.cfg != nil {
		return nil
	}
	cfg, err := config.LoadOrDefault(rt.configPathValue())
	if err != nil {
		return err
	}
	if rt.serverOverride != "" {
		cfg.Server.URL = rt.serverOverride
		cfg.Server.SubscriptionURL = ""
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	rt.cfg = cfg
	return nil
}

func (rt *runtimeState) OutputFormat() string {
	if rt.outputFormat != "" {
		return rt.outputFormat
	}
	if rt.cfg != nil && rt.cfg.Settings.OutputFormat != "" {
		return rt.cfg.Settings.OutputFormat
	}
	return config.DefaultOutputFormat
}

func (rt *runtimeState) TokenStorage() string {
	if rt.tokenStorageOverride != "" {
		return rt.tokenStorageOverride
	}
	if rt.cfg != nil && rt.cfg.Settings.TokenStorage != "" {
		return rt.cfg.Settings.TokenStorage
	}
	return config.DefaultTokenStorage
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) ErrWriter() io.Writer {
	if rt.errWriter != nil {
		return rt.errWriter
	}
	return os.Stderr
}

func (rt *runtimeState) Logger() *zap.SugaredLogger {
	if rt.log != nil {
		return rt.log
	}
	return zap.NewNop().Sugar()
}

func (rt *runtimeState) Credentials() (auth.Credentials, error) {
	return auth.NewCredentials(rt.TokenStorage(), rt.credentialPath)
}

// Browser returns the launcher for the verification URL, or nil when the
// hand-off is disabled. Without an injected launcher the platform browser is
// only used when stdin is a terminal.
func (rt *runtimeState) Browser(noBrowser bool) auth.BrowserLauncher {
	if noBrowser || rt.noBrowser || rt.nonInteractive {
		return nil
	}
	if rt.cfg != nil && rt.cfg.Settings.NoBrowser {
		return nil
	}
	if rt.browser != nil {
		return rt.browser
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	return auth.OpenBrowser
}

func (rt *runtimeState) configPathValue() string {
	if rt.configPath == "" {
		return config.DefaultConfigPath()
	}
	return rt.configPath
}
