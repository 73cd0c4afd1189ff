//go:build windows
// +build windows

package pty

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/charmbracelet/x/conpty"
)

// windowsPTY runs the child under a ConPTY pseudoconsole.
type windowsPTY struct {
	c    *conpty.ConPty
	proc *os.Process
}

func Start(name string, args ...string) (PTY, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, err
	}
	c, err := conpty.New(80, 25, 0)
	if err != nil {
		return nil, err
	}
	pid, _, err := c.Spawn(path, append([]string{path}, args...), &syscall.ProcAttr{Env: os.Environ()})
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return &windowsPTY{c: c, proc: proc}, nil
}

func (p *windowsPTY) Read(b []byte) (int, error)  { return p.c.Read(b) }
func (p *windowsPTY) Write(b []byte) (int, error) { return p.c.Write(b) }

func (p *windowsPTY) Close() error {
	if p.proc != nil {
		_ = p.proc.Kill()
	}
	return p.c.Close()
}

func (p *windowsPTY) SetSize(rows, cols int) error {
	return p.c.Resize(cols, rows)
}

func (p *windowsPTY) Wait() error {
	_, err := p.proc.Wait()
	return err
}
