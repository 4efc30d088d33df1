package cmd

import (
	"context"
	"os"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emma-cli/emma/pkg/emma/auth"
	"github.com/emma-cli/emma/pkg/emma/config"
)

func TestRuntimeStateOutputFormat(t *testing.T) {
	rt := &runtimeState{outputFormat: "json"}
	require.Equal(t, "json", rt.OutputFormat())

	rt = &runtimeState{cfg: &config.Config{Settings: config.Settings{OutputFormat: "yaml"}}}
	require.Equal(t, "yaml", rt.OutputFormat())

	rt = &runtimeState{}
	require.Equal(t, "text", rt.OutputFormat())
}

func TestRuntimeStateTokenStorage(t *testing.T) {
	rt := &runtimeState{tokenStorageOverride: "keychain", cfg: &config.Config{Settings: config.Settings{TokenStorage: "file"}}}
	require.Equal(t, "keychain", rt.TokenStorage())

	rt = &runtimeState{cfg: &config.Config{Settings: config.Settings{TokenStorage: "keychain"}}}
	require.Equal(t, "keychain", rt.TokenStorage())

	rt = &runtimeState{}
	require.Equal(t, "file", rt.TokenStorage())
}

func TestRuntimeStateBrowser(t *testing.T) {
	launcher := auth.BrowserLauncher(func(string) error { return nil })

	rt := &runtimeState{browser: launcher}
	assert.NotNil(t, rt.Browser(false))
	assert.Nil(t, rt.Browser(true))

	rt = &runtimeState{browser: launcher, nonInteractive: true}
	assert.Nil(t, rt.Browser(false))

	rt = &runtimeState{browser: launcher, noBrowser: true}
	assert.Nil(t, rt.Browser(false))

	rt = &runtimeState{browser: launcher, cfg: &config.Config{Settings: config.Settings{NoBrowser: true}}}
	assert.Nil(t, rt.Browser(false))
}

func TestEnsureConfigLoaded(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		rt := &runtimeState{configPath: configPathForTest(t)}
		require.NoError(t, rt.EnsureConfigLoaded())
		assert.Equal(t, config.DefaultServer, rt.cfg.Server.URL)
	})

	t.Run("server override replaces the subscription server", func(t *testing.T) {
		path := configPathForTest(t)
		cfg := config.DefaultConfig()
		cfg.Server.SubscriptionURL = "ws://push.example"
		require.NoError(t, config.Save(path, &cfg))

		rt := &runtimeState{configPath: path, serverOverride: "https://api.emma.example"}
		require.NoError(t, rt.EnsureConfigLoaded())
		assert.Equal(t, "https://api.emma.example", rt.cfg.Server.URL)
		assert.Empty(t, rt.cfg.Server.SubscriptionURL)
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		path := configPathForTest(t)
		require.NoError(t, os.WriteFile(path, []byte("settings:\n  token-storage: vault\n"), 0o600))

		rt := &runtimeState{configPath: path}
		err := rt.EnsureConfigLoaded()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown token-storage")
	})
}

func TestGetRuntimeWithoutRoot(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	_, err := getRuntime(cmd)
	require.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	env := newTestEnv(t)
	_, server := newFakeEmma(t)
	t.Setenv("EMMA_SERVER", server.URL)
	t.Setenv("EMMA_NO_BROWSER", "true")

	require.NoError(t, env.run("login"))
	assert.Empty(t, env.openedURLs())
	assert.Contains(t, env.out.String(), "You have successfully logged in!")
}

func configPathForTest(t *testing.T) string {
	t.Helper()
	return t.TempDir() + string(os.PathSeparator) + "config.yaml"
}
