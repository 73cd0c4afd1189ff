package transfer

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"eldersvr-cli/internal/config"
	"eldersvr-cli/internal/progress"
)

const (
	testSerial  = "R38M20BDXHE"
	testPackage = "com.q42.eldersvr"
)

func newTestEngine(f *fakeBridge, paths config.Paths, resolve ResolutionFunc) *Engine {
	return NewEngine(f, testPackage, paths, progress.NewTransferProgress(), resolve)
}

func TestTransferMasterFileSelection(t *testing.T) {
	paths := localContent(t)
	f := newFakeBridge()
	f.addDir(testSerial, config.DefaultDevicePath, true)

	eng := newTestEngine(f, paths, nil)
	target := NewDeviceTarget(testSerial, RoleMaster, config.DefaultDevicePath)
	res := eng.TransferDevice(context.Background(), target, ScopeFlags{})

	if !res.Success() {
		t.Fatalf("transfer failed: err=%v json=%+v videos=%+v", res.Err, res.JSON, res.Videos)
	}
	base := config.DefaultDevicePath
	want := []string{
		base + "/new_data.json",
		base + "/credential.json",
		base + "/Video/lowres_intro.mp4",
		base + "/Video/lowres_ocean.mp4",
		base + "/Image/intro_thumb.jpg",
		base + "/Image/nature.png",
	}
	if got := f.pushedPaths(); !reflect.DeepEqual(got, want) {
		t.Fatalf("pushes = %v, want %v", got, want)
	}
	if res.FilesPushed() != 6 || res.FilesFailed() != 0 {
		t.Errorf("pushed=%d failed=%d, want 6/0", res.FilesPushed(), res.FilesFailed())
	}
}

func TestTransferSlaveFileSelection(t *testing.T) {
	paths := localContent(t)
	f := newFakeBridge()
	f.addDir(testSerial, config.DefaultDevicePath, true)

	eng := newTestEngine(f, paths, nil)
	target := NewDeviceTarget(testSerial, RoleSlave, config.DefaultDevicePath)
	res := eng.TransferDevice(context.Background(), target, ScopeFlags{})

	if !res.Success() {
		t.Fatalf("transfer failed: %v", res.Err)
	}
	for _, p := range f.pushedPaths() {
		if strings.Contains(p, "lowres_") {
			t.Errorf("slave received low-res video %s", p)
		}
		if strings.Contains(p, "credential") {
			t.Errorf("slave received credential file %s", p)
		}
	}
	if res.Videos.Pushed != 2 {
		t.Errorf("videos pushed = %d, want 2", res.Videos.Pushed)
	}
	if res.JSON.Pushed != 1 {
		t.Errorf("json pushed = %d, want 1 (manifest only)", res.JSON.Pushed)
	}
}

func TestTransferVideosOnlyScope(t *testing.T) {
	paths := localContent(t)
	f := newFakeBridge()
	f.addDir(testSerial, config.DefaultDevicePath, true)

	eng := newTestEngine(f, paths, nil)
	target := NewDeviceTarget(testSerial, RoleMaster, config.DefaultDevicePath)
	res := eng.TransferDevice(context.Background(), target, ScopeFlags{VideosOnly: true})

	if !res.Success() {
		t.Fatalf("transfer failed: %v", res.Err)
	}
	pushes := f.pushedPaths()
	if len(pushes) != 2 {
		t.Fatalf("pushes = %v, want only the two videos", pushes)
	}
	for _, p := range pushes {
		if !strings.Contains(p, "/Video/") {
			t.Errorf("unexpected non-video push %s", p)
		}
	}
	if res.JSON.Status != progress.StatusPending {
		t.Errorf("json class ran under videos-only scope: %v", res.JSON.Status)
	}
}

func TestTransferJSONOnlyScope(t *testing.T) {
	paths := localContent(t)
	f := newFakeBridge()
	f.addDir(testSerial, config.DefaultDevicePath, true)

	eng := newTestEngine(f, paths, nil)
	target := NewDeviceTarget(testSerial, RoleMaster, config.DefaultDevicePath)
	res := eng.TransferDevice(context.Background(), target, ScopeFlags{JSONOnly: true})

	if !res.Success() {
		t.Fatalf("transfer failed: %v", res.Err)
	}
	want := []string{
		config.DefaultDevicePath + "/new_data.json",
		config.DefaultDevicePath + "/credential.json",
	}
	if got := f.pushedPaths(); !reflect.DeepEqual(got, want) {
		t.Fatalf("pushes = %v, want %v", got, want)
	}
}

func TestStorageFallbackRewritesPaths(t *testing.T) {
	paths := localContent(t)
	f := newFakeBridge()
	// Primary path does not exist and the device has no root, so the
	// package-scoped fallback should win.
	eng := newTestEngine(f, paths, nil)
	target := NewDeviceTarget(testSerial, RoleMaster, config.DefaultDevicePath)
	res := eng.TransferDevice(context.Background(), target, ScopeFlags{})

	wantBase := "/storage/emulated/0/Android/data/" + testPackage + "/files/EldersVR"
	if target.Paths.Base != wantBase {
		t.Fatalf("resolved base = %s, want %s", target.Paths.Base, wantBase)
	}
	if !res.Success() {
		t.Fatalf("transfer failed after fallback: %v", res.Err)
	}
	for _, p := range f.pushedPaths() {
		if !strings.HasPrefix(p, wantBase) {
			t.Errorf("push %s outside fallback base", p)
		}
	}
}

func TestStorageNoWritablePathFailsAllClasses(t *testing.T) {
	paths := localContent(t)
	f := newFakeBridge()
	for _, base := range []string{
		"/storage/emulated/0/Android/data/" + testPackage + "/files/EldersVR",
		"/sdcard/EldersVR",
		"/mnt/sdcard/EldersVR",
	} {
		f.mkdirFail[bkey(testSerial, base)] = true
	}

	eng := newTestEngine(f, paths, nil)
	target := NewDeviceTarget(testSerial, RoleMaster, config.DefaultDevicePath)
	res := eng.TransferDevice(context.Background(), target, ScopeFlags{})

	if !errors.Is(res.Err, ErrNoWritablePath) {
		t.Fatalf("err = %v, want ErrNoWritablePath", res.Err)
	}
	for _, c := range []ClassResult{res.JSON, res.Videos, res.Images} {
		if c.Status != progress.StatusFailed {
			t.Errorf("class status = %v, want failed", c.Status)
		}
	}
	if pushes := f.pushedPaths(); len(pushes) != 0 {
		t.Errorf("pushes attempted without writable path: %v", pushes)
	}
}

func TestStorageRootEscalationKeepsPrimary(t *testing.T) {
	paths := localContent(t)
	f := newFakeBridge()
	f.rootSerials[testSerial] = true

	eng := newTestEngine(f, paths, nil)
	target := NewDeviceTarget(testSerial, RoleMaster, config.DefaultDevicePath)
	res := eng.TransferDevice(context.Background(), target, ScopeFlags{})

	if !res.Success() {
		t.Fatalf("transfer failed: %v", res.Err)
	}
	if target.Paths.Base != config.DefaultDevicePath {
		t.Errorf("base moved to %s, root escalation should keep the primary", target.Paths.Base)
	}
	if f.shellCount("su -c id") != 1 {
		t.Errorf("su probe ran %d times, want 1", f.shellCount("su -c id"))
	}
}

func TestConflictSkipAllSkipsExisting(t *testing.T) {
	paths := localContent(t)
	f := newFakeBridge()
	base := config.DefaultDevicePath
	f.addDir(testSerial, base, true)
	f.addFile(testSerial, base+"/new_data.json", 999)
	f.addFile(testSerial, base+"/Video/lowres_intro.mp4", 999)

	calls := 0
	resolve := func(target *DeviceTarget, report *ConflictReport) (Resolution, error) {
		calls++
		if len(report.Conflicts) != 2 {
			t.Errorf("conflicts = %+v, want new_data.json and lowres_intro.mp4", report.Conflicts)
		}
		for _, c := range report.Conflicts {
			if c.RemoteSize != 999 {
				t.Errorf("conflict %s remote size = %d, want 999", c.Filename, c.RemoteSize)
			}
		}
		return ResolutionSkipAll, nil
	}

	eng := newTestEngine(f, paths, resolve)
	target := NewDeviceTarget(testSerial, RoleMaster, base)
	res := eng.TransferDevice(context.Background(), target, ScopeFlags{})

	if calls != 1 {
		t.Fatalf("resolution asked %d times, want once per device", calls)
	}
	if !res.Success() {
		t.Fatalf("transfer failed: %v", res.Err)
	}
	if res.JSON.Skipped != 1 || res.JSON.Pushed != 1 {
		t.Errorf("json skipped=%d pushed=%d, want 1/1", res.JSON.Skipped, res.JSON.Pushed)
	}
	if res.Videos.Skipped != 1 || res.Videos.Pushed != 1 || res.Videos.Total != 1 {
		t.Errorf("videos skipped=%d pushed=%d total=%d, want 1/1/1", res.Videos.Skipped, res.Videos.Pushed, res.Videos.Total)
	}
	for _, p := range f.pushedPaths() {
		if strings.HasSuffix(p, "new_data.json") || strings.HasSuffix(p, "lowres_intro.mp4") {
			t.Errorf("skipped file was pushed: %s", p)
		}
	}
}

func TestConflictOverrideAllPushesEverything(t *testing.T) {
	paths := localContent(t)
	f := newFakeBridge()
	base := config.DefaultDevicePath
	f.addDir(testSerial, base, true)
	f.addFile(testSerial, base+"/new_data.json", 999)
	f.addFile(testSerial, base+"/Video/lowres_intro.mp4", 999)

	eng := newTestEngine(f, paths, FixedResolution(ResolutionOverrideAll))
	target := NewDeviceTarget(testSerial, RoleMaster, base)
	res := eng.TransferDevice(context.Background(), target, ScopeFlags{})

	if !res.Success() {
		t.Fatalf("transfer failed: %v", res.Err)
	}
	if res.FilesPushed() != 6 {
		t.Errorf("pushed = %d, want all 6 despite the existing copies", res.FilesPushed())
	}
	if res.JSON.Status != progress.StatusCompleted || res.JSON.Pushed != 2 {
		t.Errorf("json class = %+v, want completed with manifest and credential pushed", res.JSON)
	}
	if res.Videos.Skipped != 0 {
		t.Errorf("skipped = %d, want 0 under override-all", res.Videos.Skipped)
	}
}

func TestConflictCancelAbortsBeforeAnyPush(t *testing.T) {
	paths := localContent(t)
	f := newFakeBridge()
	base := config.DefaultDevicePath
	f.addDir(testSerial, base, true)
	f.addFile(testSerial, base+"/new_data.json", 10)

	eng := newTestEngine(f, paths, FixedResolution(ResolutionCancel))
	target := NewDeviceTarget(testSerial, RoleMaster, base)
	res := eng.TransferDevice(context.Background(), target, ScopeFlags{})

	if !errors.Is(res.Err, ErrConflictCancelled) {
		t.Fatalf("err = %v, want ErrConflictCancelled", res.Err)
	}
	if pushes := f.pushedPaths(); len(pushes) != 0 {
		t.Errorf("pushes after cancel: %v", pushes)
	}
	for _, c := range []ClassResult{res.JSON, res.Videos, res.Images} {
		if c.Status != progress.StatusFailed {
			t.Errorf("class status = %v, want failed", c.Status)
		}
	}
}

func TestNoConflictsNoPrompt(t *testing.T) {
	paths := localContent(t)
	f := newFakeBridge()
	f.addDir(testSerial, config.DefaultDevicePath, true)

	calls := 0
	resolve := func(*DeviceTarget, *ConflictReport) (Resolution, error) {
		calls++
		return ResolutionCancel, nil
	}
	eng := newTestEngine(f, paths, resolve)
	res := eng.TransferDevice(context.Background(), NewDeviceTarget(testSerial, RoleMaster, config.DefaultDevicePath), ScopeFlags{})

	if calls != 0 {
		t.Errorf("resolution asked %d times on a clean device", calls)
	}
	if !res.Success() {
		t.Fatalf("transfer failed: %v", res.Err)
	}
}

func TestPushFailureContinuesWithRemainingFiles(t *testing.T) {
	paths := localContent(t)
	f := newFakeBridge()
	base := config.DefaultDevicePath
	f.addDir(testSerial, base, true)
	f.pushFail[base+"/Video/lowres_intro.mp4"] = true

	eng := newTestEngine(f, paths, nil)
	res := eng.TransferDevice(context.Background(), NewDeviceTarget(testSerial, RoleMaster, base), ScopeFlags{})

	if res.Err != nil {
		t.Fatalf("per-file failure must not be fatal, got %v", res.Err)
	}
	if res.Success() {
		t.Error("device with a failed push reported success")
	}
	if res.Videos.Failed != 1 || res.Videos.Pushed != 1 {
		t.Errorf("videos failed=%d pushed=%d, want 1/1", res.Videos.Failed, res.Videos.Pushed)
	}
	if res.Videos.Status != progress.StatusFailed {
		t.Errorf("videos status = %v, want failed", res.Videos.Status)
	}
	if res.Images.Pushed != 2 {
		t.Errorf("images pushed = %d, the run should continue past a failed video", res.Images.Pushed)
	}
}

func TestDirectoryCreateFailureAbortsDevice(t *testing.T) {
	paths := localContent(t)
	f := newFakeBridge()
	base := config.DefaultDevicePath
	f.addDir(testSerial, base, true)
	f.mkdirFail[bkey(testSerial, base+"/Video")] = true

	eng := newTestEngine(f, paths, nil)
	res := eng.TransferDevice(context.Background(), NewDeviceTarget(testSerial, RoleMaster, base), ScopeFlags{})

	if !errors.Is(res.Err, ErrDirectoryCreateFailed) {
		t.Fatalf("err = %v, want ErrDirectoryCreateFailed", res.Err)
	}
	if pushes := f.pushedPaths(); len(pushes) != 0 {
		t.Errorf("pushes after failed mkdir: %v", pushes)
	}
}

func TestTransferAllStopsWhenBridgeDies(t *testing.T) {
	paths := localContent(t)
	f := newFakeBridge()
	f.down = true

	eng := newTestEngine(f, paths, nil)
	targets := []*DeviceTarget{
		NewDeviceTarget("device-a", RoleMaster, config.DefaultDevicePath),
		NewDeviceTarget("device-b", RoleSlave, config.DefaultDevicePath),
	}
	results := eng.TransferAll(context.Background(), targets, ScopeFlags{})

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for i, res := range results {
		if !errors.Is(res.Err, ErrBridgeUnavailable) {
			t.Errorf("result %d err = %v, want ErrBridgeUnavailable", i, res.Err)
		}
	}
}

func TestCancelledContextStopsNewPushes(t *testing.T) {
	paths := localContent(t)
	f := newFakeBridge()
	f.addDir(testSerial, config.DefaultDevicePath, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := newTestEngine(f, paths, nil)
	res := eng.TransferDevice(ctx, NewDeviceTarget(testSerial, RoleMaster, config.DefaultDevicePath), ScopeFlags{})

	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", res.Err)
	}
	if pushes := f.pushedPaths(); len(pushes) != 0 {
		t.Errorf("pushes after cancellation: %v", pushes)
	}
}

func TestProgressCounterUpdatesPerFile(t *testing.T) {
	paths := localContent(t)
	f := newFakeBridge()
	f.addDir(testSerial, config.DefaultDevicePath, true)

	eng := newTestEngine(f, paths, nil)
	var videoSteps []int
	eng.Progress().OnChange(func() {
		for _, row := range eng.Progress().Snapshot() {
			if row.Serial == testSerial {
				videoSteps = append(videoSteps, row.Videos.Current)
			}
		}
	})

	res := eng.TransferDevice(context.Background(), NewDeviceTarget(testSerial, RoleMaster, config.DefaultDevicePath), ScopeFlags{})
	if !res.Success() {
		t.Fatalf("transfer failed: %v", res.Err)
	}

	saw := map[int]bool{}
	for _, v := range videoSteps {
		saw[v] = true
	}
	for want := 1; want <= 2; want++ {
		if !saw[want] {
			t.Errorf("video counter never showed %d, steps %v", want, videoSteps)
		}
	}

	rows := eng.Progress().Snapshot()
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.Videos.Current != row.Videos.Total || row.Videos.Total != 2 {
		t.Errorf("videos ended at %d/%d, want 2/2", row.Videos.Current, row.Videos.Total)
	}
	if row.JSON.Status != progress.StatusCompleted || row.Images.Status != progress.StatusCompleted {
		t.Errorf("class statuses json=%v images=%v, want completed", row.JSON.Status, row.Images.Status)
	}
}
