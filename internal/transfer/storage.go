package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"eldersvr-cli/internal/util"
)

// StorageResolver finds a writable base path on a device: primary path
// first, then root escalation, then the ordered fallback list. Root
// capability is probed once per serial and cached for the process lifetime.
type StorageResolver struct {
	bridge     DeviceBridge
	appPackage string

	mu        sync.Mutex
	rootCache map[string]bool
}

func NewStorageResolver(bridge DeviceBridge, appPackage string) *StorageResolver {
	return &StorageResolver{
		bridge:     bridge,
		appPackage: appPackage,
		rootCache:  make(map[string]bool),
	}
}

// fallbackBases are tried in order when the primary path is unusable:
// package-scoped storage (writable without permissions on modern Android),
// the legacy public storage dir, then the older mount point alias.
func (r *StorageResolver) fallbackBases() []string {
	return []string{
		fmt.Sprintf("/storage/emulated/0/Android/data/%s/files/EldersVR", r.appPackage),
		"/sdcard/EldersVR",
		"/mnt/sdcard/EldersVR",
	}
}

// Resolve ensures target.Paths points at a writable base, mutating it to a
// fallback when the configured primary is unusable. Probe timeouts count as
// failures for that step; only a dead bridge aborts with ErrBridgeUnavailable.
func (r *StorageResolver) Resolve(ctx context.Context, target *DeviceTarget) error {
	primary := target.Paths.Base

	ok, err := r.usable(ctx, target.Serial, primary)
	if err != nil {
		return err
	}
	if ok {
		target.resolved = true
		return nil
	}

	util.Default.Printf("⚠️  Primary path %s not writable on %s, trying root escalation\n", primary, target.Serial)
	ok, err = r.resolveWithRoot(ctx, target.Serial, primary)
	if err != nil {
		return err
	}
	if ok {
		target.resolved = true
		return nil
	}

	for _, base := range r.fallbackBases() {
		ok, err := r.tryFallback(ctx, target.Serial, base)
		if err != nil {
			return err
		}
		if ok {
			util.Default.Printf("📁 Using fallback storage path %s on %s\n", base, target.Serial)
			target.Paths = NewDevicePaths(base)
			target.resolved = true
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrNoWritablePath, target.Serial)
}

// usable reports whether the path exists as a directory and is writable.
func (r *StorageResolver) usable(ctx context.Context, serial, base string) (bool, error) {
	isDir, err := r.testPath(ctx, serial, base, PathIsDir)
	if err != nil || !isDir {
		return false, err
	}
	writable, err := r.testPath(ctx, serial, base, PathWritable)
	if err != nil {
		return false, err
	}
	return writable, nil
}

// testPath wraps the bridge probe, demoting timeouts to "no".
func (r *StorageResolver) testPath(ctx context.Context, serial, p string, mode PathMode) (bool, error) {
	ok, err := r.bridge.TestPath(ctx, serial, p, mode)
	if err != nil {
		if errors.Is(err, ErrBridgeUnavailable) {
			return false, err
		}
		return false, nil
	}
	return ok, nil
}

// resolveWithRoot creates the primary path under su and loosens its
// permissions, then re-verifies writability.
func (r *StorageResolver) resolveWithRoot(ctx context.Context, serial, primary string) (bool, error) {
	hasRoot, err := r.HasRoot(ctx, serial)
	if err != nil {
		return false, err
	}
	if !hasRoot {
		return false, nil
	}

	for _, cmd := range []string{
		"mkdir -p " + primary,
		"chmod 777 " + primary,
	} {
		res, err := r.bridge.Shell(ctx, serial, "su", "-c", cmd)
		if err != nil {
			if errors.Is(err, ErrBridgeUnavailable) {
				return false, err
			}
			return false, nil
		}
		if res.ExitCode != 0 {
			return false, nil
		}
	}

	return r.usable(ctx, serial, primary)
}

// HasRoot probes whether su actually grants root on the device. Command
// success is not enough: some su builds exit 0 without elevating, so the
// reported identity must show uid 0. The answer is cached per serial.
func (r *StorageResolver) HasRoot(ctx context.Context, serial string) (bool, error) {
	r.mu.Lock()
	if cached, ok := r.rootCache[serial]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	hasRoot := false
	res, err := r.bridge.Shell(ctx, serial, "su", "-c", "id")
	if err != nil {
		if errors.Is(err, ErrBridgeUnavailable) {
			return false, err
		}
	} else if res.ExitCode == 0 && strings.Contains(res.Stdout, "uid=0") {
		hasRoot = true
	}

	r.mu.Lock()
	r.rootCache[serial] = hasRoot
	r.mu.Unlock()

	if hasRoot {
		util.Default.Printf("🔓 Root access available on %s\n", serial)
	}
	return hasRoot, nil
}

// tryFallback attempts mkdir -p plus a writability test on one fallback base.
func (r *StorageResolver) tryFallback(ctx context.Context, serial, base string) (bool, error) {
	if err := r.bridge.Mkdirs(ctx, serial, base); err != nil {
		if errors.Is(err, ErrBridgeUnavailable) {
			return false, err
		}
		return false, nil
	}
	return r.testPath(ctx, serial, base, PathWritable)
}
