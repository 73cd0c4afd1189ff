package transfer

import (
	"context"
	"testing"

	"eldersvr-cli/internal/config"
)

func slaveFileSet(t *testing.T, paths config.Paths) *FileSet {
	t.Helper()
	files, err := BuildFileSet(paths, RoleSlave, ScopeFlags{})
	if err != nil {
		t.Fatal(err)
	}
	return files
}

func TestCheckSplitsSafeFromConflicting(t *testing.T) {
	paths := localContent(t)
	bridge := newFakeBridge()
	bridge.addFile("S1", config.DefaultDevicePath+"/new_data.json", 55)
	bridge.addFile("S1", config.DefaultDevicePath+"/Video/highres_intro.mp4", 999)

	detector := NewConflictDetector(bridge)
	target := NewDeviceTarget("S1", RoleSlave, config.DefaultDevicePath)

	report, err := detector.Check(context.Background(), target, slaveFileSet(t, paths))
	if err != nil {
		t.Fatal(err)
	}
	if !report.HasConflicts() {
		t.Fatal("expected conflicts")
	}
	if len(report.Conflicts) != 2 {
		t.Fatalf("conflicts = %+v, want 2", report.Conflicts)
	}
	for _, c := range report.Conflicts {
		if c.LocalSize <= 0 {
			t.Errorf("%s: local size not read", c.Filename)
		}
	}
	if report.Conflicts[1].Filename != "highres_intro.mp4" || report.Conflicts[1].RemoteSize != 999 {
		t.Errorf("video conflict = %+v", report.Conflicts[1])
	}

	want := map[string]bool{"highres_ocean.mp4": true, "intro_thumb.jpg": true, "nature.png": true}
	if len(report.Safe) != len(want) {
		t.Fatalf("safe = %v, want %v", report.Safe, want)
	}
	for _, name := range report.Safe {
		if !want[name] {
			t.Errorf("unexpected safe file %s", name)
		}
	}

	skip := report.SkipSet()
	if !skip["new_data.json"] || !skip["highres_intro.mp4"] || skip["nature.png"] {
		t.Errorf("skip set = %v", skip)
	}
}

func TestCheckProbeTimeoutCountsAsAbsent(t *testing.T) {
	paths := localContent(t)
	bridge := newFakeBridge()
	bridge.addFile("S1", config.DefaultDevicePath+"/Video/highres_intro.mp4", 999)
	bridge.probeErr[bkey("S1", config.DefaultDevicePath+"/Video/highres_intro.mp4")] = context.DeadlineExceeded

	detector := NewConflictDetector(bridge)
	target := NewDeviceTarget("S1", RoleSlave, config.DefaultDevicePath)

	report, err := detector.Check(context.Background(), target, slaveFileSet(t, paths))
	if err != nil {
		t.Fatal(err)
	}
	if report.HasConflicts() {
		t.Errorf("timed-out probe reported as conflict: %+v", report.Conflicts)
	}
}

func TestCheckBridgeDownAborts(t *testing.T) {
	paths := localContent(t)
	bridge := newFakeBridge()
	bridge.down = true

	detector := NewConflictDetector(bridge)
	target := NewDeviceTarget("S1", RoleSlave, config.DefaultDevicePath)

	if _, err := detector.Check(context.Background(), target, slaveFileSet(t, paths)); err == nil {
		t.Fatal("expected bridge error")
	}
}

func TestRemoteSizeFallsBackToWc(t *testing.T) {
	paths := localContent(t)
	bridge := newFakeBridge()
	remote := config.DefaultDevicePath + "/Video/highres_intro.mp4"
	bridge.addFile("S1", remote, 0)
	bridge.shellOut["stat -c %s "+remote] = ExecResult{ExitCode: 1, Stderr: "stat: not found"}
	bridge.shellOut["wc -c "+remote] = ExecResult{Stdout: "  4242 " + remote + "\n"}

	detector := NewConflictDetector(bridge)
	target := NewDeviceTarget("S1", RoleSlave, config.DefaultDevicePath)

	report, err := detector.Check(context.Background(), target, slaveFileSet(t, paths))
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, c := range report.Conflicts {
		if c.Filename == "highres_intro.mp4" {
			found = true
			if c.RemoteSize != 4242 {
				t.Errorf("remote size = %d, want 4242 from wc fallback", c.RemoteSize)
			}
		}
	}
	if !found {
		t.Fatal("seeded file not reported as conflict")
	}
}
