//go:build !windows
// +build !windows

package transfer

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"eldersvr-cli/internal/pty"
)

// watchResize propagates terminal size changes to the pty via SIGWINCH.
func watchResize(pt pty.PTY, fd int) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGWINCH)
	go func() {
		for range ch {
			if w, h, err := term.GetSize(fd); err == nil {
				_ = pt.SetSize(h, w)
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
	}
}
