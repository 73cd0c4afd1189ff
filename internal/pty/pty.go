// Package pty is a small cross-platform pseudo-terminal wrapper used for
// interactive device shells.
package pty

import "io"

type PTY interface {
	io.ReadWriteCloser
	// SetSize resizes the terminal the child sees.
	SetSize(rows, cols int) error
	// Wait blocks until the child process exits.
	Wait() error
}
