package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"golang.org/x/term"

	"eldersvr-cli/internal/pty"
	"eldersvr-cli/internal/util"
)

// InteractiveShell opens `adb shell` on the device inside a local pty, so
// line editing and full-screen tools on the device work as in a normal
// terminal session. Returns once the remote shell exits.
func InteractiveShell(ctx context.Context, adbBinary, serial string) error {
	if adbBinary == "" {
		adbBinary = "adb"
	}
	util.Default.Printf("🐚 Opening shell on %s (type 'exit' to leave)...\n", serial)

	pt, err := pty.Start(adbBinary, "-s", serial, "shell")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrBridgeUnavailable, err)
		}
		return fmt.Errorf("could not start shell on %s: %v", serial, err)
	}
	defer pt.Close()

	stdinFd := int(os.Stdin.Fd())
	if term.IsTerminal(stdinFd) && term.IsTerminal(int(os.Stdout.Fd())) {
		restore, rawErr := util.EnableRaw(stdinFd)
		if rawErr != nil {
			return rawErr
		}
		defer restore()
		if w, h, sizeErr := term.GetSize(stdinFd); sizeErr == nil {
			_ = pt.SetSize(h, w)
		}
		stop := watchResize(pt, stdinFd)
		defer stop()
	}

	// Close the pty when the context dies so Wait unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = pt.Close()
		case <-done:
		}
	}()

	go func() { _, _ = io.Copy(pt, os.Stdin) }()
	go func() { _, _ = io.Copy(os.Stdout, pt) }()

	err = pt.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	// The shell's own exit status is not this command's failure.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
