//go:build !windows
// +build !windows

package pty

import (
	"os"
	"os/exec"

	creackpty "github.com/creack/pty"
)

// unixPTY wraps the master side returned by creack/pty.
type unixPTY struct {
	f   *os.File
	cmd *exec.Cmd
}

func Start(name string, args ...string) (PTY, error) {
	cmd := exec.Command(name, args...)
	f, err := creackpty.Start(cmd)
	if err != nil {
		return nil, err
	}
	return &unixPTY{f: f, cmd: cmd}, nil
}

func (p *unixPTY) Read(b []byte) (int, error)  { return p.f.Read(b) }
func (p *unixPTY) Write(b []byte) (int, error) { return p.f.Write(b) }

func (p *unixPTY) Close() error {
	err := p.f.Close()
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	return err
}

func (p *unixPTY) SetSize(rows, cols int) error {
	return creackpty.Setsize(p.f, &creackpty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

func (p *unixPTY) Wait() error { return p.cmd.Wait() }
