package tui

import (
	"os/exec"
	"runtime"

	"tokendash/pkg/utils"
)

func (m model) displayValue(amount string) string {
	if m.privacyMode {
		return "****"
	}
	return utils.FormatAmount(amount, m.config.DisplayDecimals)
}

func (m model) maskAddress(addr string) string {
	if m.privacyMode {
		return "0x**...**"
	}
	return addr
}

func (m model) shortAddress(addr string) string {
	if m.privacyMode {
		return "0x**...**"
	}
	return utils.ShortAddress(addr)
}

// openBrowser opens the specified URL in the default browser.
func openBrowser(url string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start"}
	case "darwin":
		cmd = "open"
	default: // "linux", "freebsd", "openbsd", "netbsd"
		cmd = "xdg-open"
	}
	args = append(args, url)
	return exec.Command(cmd, args...).Start()
}
