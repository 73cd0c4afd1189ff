//go:build windows
// +build windows

package transfer

import (
	"time"

	"golang.org/x/term"

	"eldersvr-cli/internal/pty"
)

// watchResize polls the console size since Windows has no SIGWINCH.
func watchResize(pt pty.PTY, fd int) func() {
	stop := make(chan struct{})
	go func() {
		lastW, lastH := 0, 0
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if w, h, err := term.GetSize(fd); err == nil && (w != lastW || h != lastH) {
					lastW, lastH = w, h
					_ = pt.SetSize(h, w)
				}
			}
		}
	}()
	return func() { close(stop) }
}
