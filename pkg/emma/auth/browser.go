package auth

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// ErrBrowserDisabled is returned by OpenBrowser when EMMA_NO_BROWSER is set.
var ErrBrowserDisabled = errors.New("browser launch disabled by EMMA_NO_BROWSER")

// OpenBrowser starts the platform URL handler for url and does not wait for it.
func OpenBrowser(url string) error {
	if strings.EqualFold(os.Getenv("EMMA_NO_BROWSER"), "true") {
		return ErrBrowserDisabled
	}
	cmd := browserCommand(runtime.GOOS, url)
	if cmd == nil {
		return errors.New("no browser command available")
	}
	_, err := startDetached(cmd)
	return err
}

// startDetached starts cmd without waiting for it and reaps it in the
// background. The returned channel is closed once the process was reaped.
func startDetached(cmd *exec.Cmd) (<-chan struct{}, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	reaped := make(chan struct{})
	go func() {
		defer close(reaped)
		_ = cmd.Wait()
	}()
	return reaped, nil
}

func browserCommand(goos, url string) *exec.Cmd {
	switch goos {
	case "darwin":
		return exec.Command("open", url)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "linux", "freebsd", "openbsd", "netbsd":
		return exec.Command("xdg-open", url)
	default:
		return nil
	}
}
