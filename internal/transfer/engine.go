package transfer

import (
	"context"
	"errors"
	"fmt"
	"path"

	"eldersvr-cli/internal/config"
	"eldersvr-cli/internal/events"
	"eldersvr-cli/internal/progress"
	"eldersvr-cli/internal/util"
)

// Engine orchestrates one device transfer: storage resolution, directory
// creation, conflict resolution, then the ordered push of json, videos, and
// images. Devices are transferred sequentially; pushes against a single
// bridge connection are not parallelized.
type Engine struct {
	bridge   DeviceBridge
	resolver *StorageResolver
	detector *ConflictDetector
	resolve  ResolutionFunc
	prog     *progress.TransferProgress
	paths    config.Paths
}

func NewEngine(bridge DeviceBridge, appPackage string, paths config.Paths, prog *progress.TransferProgress, resolve ResolutionFunc) *Engine {
	if resolve == nil {
		resolve = FixedResolution(ResolutionSkipAll)
	}
	if prog == nil {
		prog = progress.NewTransferProgress()
	}
	return &Engine{
		bridge:   bridge,
		resolver: NewStorageResolver(bridge, appPackage),
		detector: NewConflictDetector(bridge),
		resolve:  resolve,
		prog:     prog,
		paths:    paths,
	}
}

// Progress exposes the transfer table for renderers.
func (e *Engine) Progress() *progress.TransferProgress { return e.prog }

func roleName(role Role) string {
	if role == RoleMaster {
		return "Master"
	}
	return "Slave"
}

// TransferAll runs the targets in order. A dead bridge stops the run and
// marks the remaining devices failed without attempting them.
func (e *Engine) TransferAll(ctx context.Context, targets []*DeviceTarget, flags ScopeFlags) []*Result {
	results := make([]*Result, 0, len(targets))
	bridgeDown := false
	for _, target := range targets {
		if bridgeDown {
			results = append(results, newResult(target).failAll(ErrBridgeUnavailable))
			continue
		}
		if err := ctx.Err(); err != nil {
			results = append(results, newResult(target).failAll(err))
			continue
		}

		res := e.TransferDevice(ctx, target, flags)
		results = append(results, res)
		if errors.Is(res.Err, ErrBridgeUnavailable) {
			bridgeDown = true
		}
	}
	return results
}

// TransferDevice pushes the role-filtered file set to one device. Fatal
// steps (storage resolution, directory creation, a cancel resolution) fail
// every class; per-file push failures are tallied and the loop continues.
func (e *Engine) TransferDevice(ctx context.Context, target *DeviceTarget, flags ScopeFlags) *Result {
	result := newResult(target)
	e.prog.AddDevice(target.Serial, roleName(target.Role))
	events.GlobalBus.Publish(events.EventTransferStarted, target.Serial, string(target.Role))
	util.Default.Printf("📱 Transferring to %s device %s...\n", roleName(target.Role), target.Serial)

	if err := e.resolver.Resolve(ctx, target); err != nil {
		util.Default.Printf("❌ Storage resolution failed on %s: %v\n", target.Serial, err)
		return e.finish(target, result.failAll(err))
	}

	// Directory creation is a hard gate: nothing is pushed without it.
	for _, dir := range []string{target.Paths.Base, target.Paths.Video, target.Paths.Image} {
		if err := e.bridge.Mkdirs(ctx, target.Serial, dir); err != nil {
			if errors.Is(err, ErrBridgeUnavailable) {
				return e.finish(target, result.failAll(err))
			}
			util.Default.Printf("❌ Could not create %s on %s\n", dir, target.Serial)
			return e.finish(target, result.failAll(fmt.Errorf("%w: %s: %v", ErrDirectoryCreateFailed, dir, err)))
		}
	}

	files, err := BuildFileSet(e.paths, target.Role, flags)
	if err != nil {
		util.Default.Printf("❌ %v\n", err)
		return e.finish(target, result.failAll(err))
	}

	// One conflict check for the whole set, so the user sees a single prompt
	// per device.
	report, err := e.detector.Check(ctx, target, files)
	if err != nil {
		return e.finish(target, result.failAll(err))
	}

	skip := map[string]bool{}
	if report.HasConflicts() {
		resolution, err := e.resolve(target, report)
		if err != nil {
			return e.finish(target, result.failAll(err))
		}
		switch resolution {
		case ResolutionCancel:
			util.Default.Printf("🚫 Transfer to %s cancelled\n", target.Serial)
			return e.finish(target, result.failAll(ErrConflictCancelled))
		case ResolutionSkipAll:
			skip = report.SkipSet()
			util.Default.Printf("⏭️  Keeping %d existing files on %s\n", len(skip), target.Serial)
		case ResolutionOverrideAll:
			util.Default.Printf("🔄 Overwriting %d existing files on %s\n", len(report.Conflicts), target.Serial)
		}
	}

	if !flags.VideosOnly {
		if err := e.pushFiles(ctx, target, "json", files.JSON, files.JSONNames(), target.Paths.Base, skip, &result.JSON); err != nil {
			return e.finish(target, withFatal(result, err))
		}
	}
	if !flags.JSONOnly {
		if err := e.pushFiles(ctx, target, "videos", files.Videos, files.VideoNames(), target.Paths.Video, skip, &result.Videos); err != nil {
			return e.finish(target, withFatal(result, err))
		}
		if !flags.VideosOnly {
			if err := e.pushFiles(ctx, target, "images", files.Images, files.ImageNames(), target.Paths.Image, skip, &result.Images); err != nil {
				return e.finish(target, withFatal(result, err))
			}
		}
	}

	return e.finish(target, result)
}

// withFatal records a mid-transfer fatal error without wiping the tallies of
// classes that already ran.
func withFatal(result *Result, err error) *Result {
	result.Err = err
	return result
}

func (e *Engine) finish(target *DeviceTarget, result *Result) *Result {
	if result.Err != nil {
		// Classes that finished before the fatal error keep their status.
		classes := map[string]*ClassResult{
			"json":   &result.JSON,
			"videos": &result.Videos,
			"images": &result.Images,
		}
		for class, cr := range classes {
			if cr.Status != progress.StatusCompleted {
				cr.Status = progress.StatusFailed
				e.prog.SetStatus(target.Serial, class, progress.StatusFailed)
			}
		}
	}
	events.GlobalBus.Publish(events.EventTransferFinished, target.Serial, result.Success())
	return result
}

// pushFiles pushes one class sequentially, updating the progress table after
// every file. User-skipped files are excluded from the total. Per-file
// failures keep the loop going; only a dead bridge or a cancelled context
// aborts, and the error return is reserved for those.
func (e *Engine) pushFiles(ctx context.Context, target *DeviceTarget, class string, files map[string]string, names []string, remoteDir string, skip map[string]bool, cr *ClassResult) error {
	total := 0
	for _, name := range names {
		if !skip[name] {
			total++
		}
	}
	cr.Total = total
	cr.Skipped = len(names) - total

	if total == 0 {
		cr.Status = progress.StatusCompleted
		e.prog.SetStatus(target.Serial, class, progress.StatusCompleted)
		return nil
	}

	e.prog.SetStatus(target.Serial, class, progress.StatusInProgress)
	e.prog.SetProgress(target.Serial, class, 0, total)

	current := 0
	for _, name := range names {
		if skip[name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			cr.Status = progress.StatusFailed
			e.prog.SetStatus(target.Serial, class, progress.StatusFailed)
			return err
		}

		err := e.bridge.Push(ctx, target.Serial, files[name], path.Join(remoteDir, name))
		current++
		if err != nil {
			cr.Failed++
			if errors.Is(err, ErrBridgeUnavailable) {
				cr.Status = progress.StatusFailed
				e.prog.SetStatus(target.Serial, class, progress.StatusFailed)
				return err
			}
			util.Default.Printf("❌ Failed to push %s to %s: %v\n", name, target.Serial, err)
		} else {
			cr.Pushed++
		}
		e.prog.SetProgress(target.Serial, class, current, total)
		events.GlobalBus.Publish(events.EventTransferProgress, target.Serial, class, current, total)
	}

	if cr.Failed == 0 {
		cr.Status = progress.StatusCompleted
	} else {
		cr.Status = progress.StatusFailed
	}
	e.prog.SetStatus(target.Serial, class, cr.Status)
	return nil
}
