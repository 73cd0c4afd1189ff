// Package transfer pushes downloaded assets onto paired devices over a
// device bridge: it resolves a writable storage path per device, detects
// files that already exist remotely, and fans out role-specific subsets
// (master gets low-res videos and the credential file, slave gets high-res)
// while tallying per-file outcomes.
package transfer

import (
	"context"
	"errors"
)

var (
	// ErrBridgeUnavailable means the bridge transport itself is unreachable.
	// Fatal for the whole run, not just one device.
	ErrBridgeUnavailable = errors.New("device bridge unavailable")

	// ErrNoWritablePath means primary, elevated, and fallback storage paths
	// all failed for a device.
	ErrNoWritablePath = errors.New("no writable storage path on device")

	// ErrDirectoryCreateFailed aborts a device transfer before any push.
	ErrDirectoryCreateFailed = errors.New("failed to create device directories")

	// ErrConflictCancelled is the user cancelling at the conflict prompt.
	ErrConflictCancelled = errors.New("transfer cancelled at conflict prompt")
)

// PathMode selects what TestPath probes for.
type PathMode string

const (
	PathExists   PathMode = "exists"
	PathIsDir    PathMode = "dir"
	PathIsFile   PathMode = "file"
	PathWritable PathMode = "writable"
)

// Device is one row of the bridge's device listing.
type Device struct {
	Serial  string
	Status  string
	Model   string
	Product string
}

// Usable reports whether the device is connected and authorized. Devices in
// "unauthorized" or "offline" state show up in listings but reject commands.
func (d Device) Usable() bool { return d.Status == "device" }

// ExecResult carries the outcome of one shell invocation on a device.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// DeviceBridge is the narrow transport contract the storage resolver,
// conflict detector, and transfer engine depend on. The adbclient package
// provides the real implementation; tests use a fake.
type DeviceBridge interface {
	ListDevices(ctx context.Context) ([]Device, error)
	TestPath(ctx context.Context, serial, path string, mode PathMode) (bool, error)
	Mkdirs(ctx context.Context, serial, path string) error
	Push(ctx context.Context, serial, localPath, remotePath string) error
	Shell(ctx context.Context, serial string, args ...string) (ExecResult, error)
	Remove(ctx context.Context, serial, path string) error
	Install(ctx context.Context, serial, apkPath string) error
}
