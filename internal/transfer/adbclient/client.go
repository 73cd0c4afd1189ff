// Package adbclient implements the device bridge on top of the adb binary.
// Every call shells out with a per-command timeout; nothing here keeps state
// beyond the binary path, so one client serves any number of devices.
package adbclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	"eldersvr-cli/internal/transfer"
)

const (
	versionTimeout   = 10 * time.Second
	devicesTimeout   = 30 * time.Second
	testTimeout      = 15 * time.Second
	probeTimeout     = 10 * time.Second
	shellTimeout     = 30 * time.Second
	pushTimeout      = 60 * time.Second
	pushVideoTimeout = 300 * time.Second
	installTimeout   = 120 * time.Second
)

type Client struct {
	binary string
}

func New(binary string) *Client {
	if binary == "" {
		binary = "adb"
	}
	return &Client{binary: binary}
}

// Ping checks that the adb binary runs at all.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.run(ctx, versionTimeout, "version")
	return err
}

// run executes one adb invocation. A nonzero exit is not an error here; the
// caller gets the ExecResult and decides. A missing binary maps to
// ErrBridgeUnavailable, a blown timeout to context.DeadlineExceeded.
func (c *Client) run(ctx context.Context, timeout time.Duration, args ...string) (*transfer.ExecResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &transfer.ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return nil, fmt.Errorf("%w: %v", transfer.ErrBridgeUnavailable, err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("adb %s timed out after %s: %w", args[0], timeout, context.DeadlineExceeded)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, err
}

// ListDevices parses `adb devices -l`. The header line and daemon startup
// notices are skipped; model/product come from the -l detail tokens.
func (c *Client) ListDevices(ctx context.Context) ([]transfer.Device, error) {
	res, err := c.run(ctx, devicesTimeout, "devices", "-l")
	if err != nil {
		return nil, err
	}
	return parseDevices(res.Stdout), nil
}

func parseDevices(out string) []transfer.Device {
	var devices []transfer.Device
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		dev := transfer.Device{Serial: fields[0], Status: fields[1]}
		for _, field := range fields[2:] {
			if v, ok := strings.CutPrefix(field, "model:"); ok {
				dev.Model = strings.ReplaceAll(v, "_", " ")
			}
			if v, ok := strings.CutPrefix(field, "product:"); ok {
				dev.Product = v
			}
		}
		devices = append(devices, dev)
	}
	return devices
}

// TestPath probes a remote path. Probes use echo sentinels instead of exit
// codes because adb shell on older devices always exits zero. A timed-out
// probe reports the path as absent rather than failing the caller.
func (c *Client) TestPath(ctx context.Context, serial, p string, mode transfer.PathMode) (bool, error) {
	var probe string
	timeout := testTimeout
	switch mode {
	case transfer.PathIsDir:
		probe = fmt.Sprintf("test -d %s && echo yes", p)
	case transfer.PathIsFile:
		probe = fmt.Sprintf("test -f %s && echo yes", p)
	case transfer.PathWritable:
		marker := path.Join(p, ".eldersvr_probe")
		probe = fmt.Sprintf("touch %s && rm %s && echo yes", marker, marker)
		timeout = probeTimeout
	default:
		probe = fmt.Sprintf("test -e %s && echo yes", p)
	}

	res, err := c.run(ctx, timeout, "-s", serial, "shell", probe)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		return false, err
	}
	return strings.Contains(res.Stdout, "yes"), nil
}

// Mkdirs creates the directory and verifies it actually exists afterward,
// since mkdir over adb can fail silently on read-only mounts.
func (c *Client) Mkdirs(ctx context.Context, serial, dir string) error {
	if _, err := c.run(ctx, testTimeout, "-s", serial, "shell", "mkdir", "-p", dir); err != nil {
		return err
	}
	ok, err := c.TestPath(ctx, serial, dir, transfer.PathIsDir)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("directory %s missing after mkdir on %s", dir, serial)
	}
	return nil
}

func (c *Client) Push(ctx context.Context, serial, localPath, remotePath string) error {
	timeout := pushTimeout
	if strings.EqualFold(filepath.Ext(localPath), ".mp4") {
		timeout = pushVideoTimeout
	}
	res, err := c.run(ctx, timeout, "-s", serial, "push", localPath, remotePath)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("push %s: %s", filepath.Base(localPath), firstLine(res.Stderr, res.ExitCode))
	}
	return nil
}

func (c *Client) Shell(ctx context.Context, serial string, cmd ...string) (transfer.ExecResult, error) {
	args := append([]string{"-s", serial, "shell"}, cmd...)
	res, err := c.run(ctx, shellTimeout, args...)
	if err != nil {
		return transfer.ExecResult{}, err
	}
	return *res, nil
}

func (c *Client) Remove(ctx context.Context, serial, remotePath string) error {
	res, err := c.run(ctx, probeTimeout, "-s", serial, "shell", "rm", "-f", remotePath)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("rm %s: %s", remotePath, firstLine(res.Stderr, res.ExitCode))
	}
	return nil
}

// Install runs `adb install -r`. adb reports some install failures with a
// zero exit, so the Success marker on stdout is checked as well.
func (c *Client) Install(ctx context.Context, serial, apkPath string) error {
	res, err := c.run(ctx, installTimeout, "-s", serial, "install", "-r", apkPath)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 || !strings.Contains(res.Stdout, "Success") {
		return fmt.Errorf("install %s: %s", filepath.Base(apkPath), firstLine(res.Stdout+res.Stderr, res.ExitCode))
	}
	return nil
}

func firstLine(s string, exitCode int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Sprintf("exit status %d", exitCode)
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
