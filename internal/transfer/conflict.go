package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
)

// Conflict is a local file whose name already exists on the device.
// Existence alone makes it a conflict; sizes are reported so the prompt can
// show whether the remote copy differs.
type Conflict struct {
	Filename   string
	LocalSize  int64
	RemoteSize int64
}

// ConflictReport classifies one device's file set before any push.
type ConflictReport struct {
	Safe      []string
	Conflicts []Conflict
}

func (r *ConflictReport) HasConflicts() bool { return len(r.Conflicts) > 0 }

// Resolution is the session-scoped decision for a device's entire conflict
// set. There is no per-file choice.
type Resolution string

const (
	ResolutionSkipAll     Resolution = "skip_all"
	ResolutionOverrideAll Resolution = "override_all"
	ResolutionCancel      Resolution = "cancel"
)

// ResolutionFunc is the capability the engine calls when a device has
// conflicts. Interactive commands wire a prompt here; automated pipelines
// pass a fixed policy.
type ResolutionFunc func(target *DeviceTarget, report *ConflictReport) (Resolution, error)

// FixedResolution returns a ResolutionFunc for non-interactive runs.
func FixedResolution(r Resolution) ResolutionFunc {
	return func(*DeviceTarget, *ConflictReport) (Resolution, error) {
		return r, nil
	}
}

// ConflictDetector checks which local files already exist on a device.
type ConflictDetector struct {
	bridge DeviceBridge
}

func NewConflictDetector(bridge DeviceBridge) *ConflictDetector {
	return &ConflictDetector{bridge: bridge}
}

// Check probes the device once for the entire file set, so the caller can
// present all conflicts in a single prompt instead of one per file. A probe
// timeout counts as "not present"; only a dead bridge aborts.
func (d *ConflictDetector) Check(ctx context.Context, target *DeviceTarget, files *FileSet) (*ConflictReport, error) {
	report := &ConflictReport{}

	check := func(name, localPath, remoteDir string) error {
		remotePath := path.Join(remoteDir, name)
		exists, err := d.bridge.TestPath(ctx, target.Serial, remotePath, PathIsFile)
		if err != nil {
			if errors.Is(err, ErrBridgeUnavailable) {
				return err
			}
			exists = false
		}
		if !exists {
			report.Safe = append(report.Safe, name)
			return nil
		}

		conflict := Conflict{Filename: name, RemoteSize: -1}
		if info, err := os.Stat(localPath); err == nil {
			conflict.LocalSize = info.Size()
		}
		if size, err := d.remoteSize(ctx, target.Serial, remotePath); err == nil {
			conflict.RemoteSize = size
		}
		report.Conflicts = append(report.Conflicts, conflict)
		return nil
	}

	for _, name := range files.JSONNames() {
		if err := check(name, files.JSON[name], target.Paths.Base); err != nil {
			return nil, err
		}
	}
	for _, name := range files.VideoNames() {
		if err := check(name, files.Videos[name], target.Paths.Video); err != nil {
			return nil, err
		}
	}
	for _, name := range files.ImageNames() {
		if err := check(name, files.Images[name], target.Paths.Image); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// remoteSize reads a remote file's size in bytes via stat, falling back to
// wc -c on devices whose toybox build lacks stat.
func (d *ConflictDetector) remoteSize(ctx context.Context, serial, remotePath string) (int64, error) {
	res, err := d.bridge.Shell(ctx, serial, "stat", "-c", "%s", remotePath)
	if err != nil {
		return 0, err
	}
	if res.ExitCode == 0 {
		if size, err := strconv.ParseInt(strings.TrimSpace(res.Stdout), 10, 64); err == nil {
			return size, nil
		}
	}

	res, err = d.bridge.Shell(ctx, serial, "wc", "-c", remotePath)
	if err != nil {
		return 0, err
	}
	if res.ExitCode != 0 {
		return 0, fmt.Errorf("size check failed: %s", strings.TrimSpace(res.Stderr))
	}
	fields := strings.Fields(res.Stdout)
	if len(fields) == 0 {
		return 0, fmt.Errorf("unexpected wc output: %q", res.Stdout)
	}
	size, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected wc output: %q", res.Stdout)
	}
	return size, nil
}

// SkipSet returns the conflicting filenames as a set, for SkipAll handling.
func (r *ConflictReport) SkipSet() map[string]bool {
	skip := make(map[string]bool, len(r.Conflicts))
	for _, c := range r.Conflicts {
		skip[c.Filename] = true
	}
	return skip
}
