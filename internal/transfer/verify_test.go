package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"eldersvr-cli/internal/config"
)

func TestVerifyReportsDeviceState(t *testing.T) {
	f := newFakeBridge()
	base := config.DefaultDevicePath
	target := NewDeviceTarget(testSerial, RoleMaster, base)
	f.addFile(testSerial, base+"/new_data.json", 120)
	f.addFile(testSerial, base+"/credential.json", 60)
	f.shellOut[fmt.Sprintf("find %s -name '*.mp4' 2>/dev/null | wc -l", target.Paths.Video)] = ExecResult{Stdout: "4\n"}
	f.shellOut[fmt.Sprintf("find %s -type f 2>/dev/null | wc -l", target.Paths.Image)] = ExecResult{Stdout: "7\n"}
	f.shellOut["du -sh "+base] = ExecResult{Stdout: "1.2G\t" + base + "\n"}
	f.shellOut["df -h "+base] = ExecResult{Stdout: "Filesystem      Size  Used Avail Use% Mounted on\n/dev/fuse        55G   12G   43G  22% /storage/emulated\n"}

	report, err := NewVerifier(f, "new_data.json").Verify(context.Background(), target)
	if err != nil {
		t.Fatal(err)
	}
	if !report.ManifestOK || !report.CredentialOK {
		t.Errorf("manifest=%v credential=%v, want both present", report.ManifestOK, report.CredentialOK)
	}
	if report.VideoCount != 4 || report.ImageCount != 7 {
		t.Errorf("counts videos=%d images=%d, want 4/7", report.VideoCount, report.ImageCount)
	}
	if report.UsedSpace != "1.2G" || report.FreeSpace != "43G" {
		t.Errorf("space used=%s free=%s, want 1.2G/43G", report.UsedSpace, report.FreeSpace)
	}
}

func TestVerifySlaveIgnoresCredential(t *testing.T) {
	f := newFakeBridge()
	base := config.DefaultDevicePath
	f.addFile(testSerial, base+"/new_data.json", 120)

	report, err := NewVerifier(f, "new_data.json").Verify(context.Background(), NewDeviceTarget(testSerial, RoleSlave, base))
	if err != nil {
		t.Fatal(err)
	}
	if !report.ManifestOK {
		t.Error("manifest not found")
	}
	if report.CredentialOK {
		t.Error("credential checked on a slave device")
	}
	if report.UsedSpace != "unknown" {
		t.Errorf("used space = %s, want unknown when du gives nothing", report.UsedSpace)
	}
}

func TestIsInstalled(t *testing.T) {
	f := newFakeBridge()
	mgr := NewAppManager(f, testPackage)

	ok, err := mgr.IsInstalled(context.Background(), testSerial)
	if err != nil || ok {
		t.Fatalf("IsInstalled = %v, %v on a bare device", ok, err)
	}

	f.shellOut["pm list packages "+testPackage] = ExecResult{Stdout: "package:" + testPackage + "\n"}
	ok, err = mgr.IsInstalled(context.Background(), testSerial)
	if err != nil || !ok {
		t.Fatalf("IsInstalled = %v, %v after install", ok, err)
	}
}

func TestClearAppData(t *testing.T) {
	f := newFakeBridge()
	mgr := NewAppManager(f, testPackage)

	f.shellOut["pm clear "+testPackage] = ExecResult{Stdout: "Success\n"}
	if err := mgr.ClearAppData(context.Background(), testSerial); err != nil {
		t.Fatal(err)
	}

	f.shellOut["pm clear "+testPackage] = ExecResult{Stdout: "Failed\n"}
	if err := mgr.ClearAppData(context.Background(), testSerial); err == nil {
		t.Error("Failed output accepted as success")
	}
}

func TestCleanContentRecreatesTree(t *testing.T) {
	f := newFakeBridge()
	paths := NewDevicePaths(config.DefaultDevicePath)
	mgr := NewAppManager(f, testPackage)

	if err := mgr.CleanContent(context.Background(), testSerial, paths); err != nil {
		t.Fatal(err)
	}
	if n := f.shellCount("rm -rf " + paths.Base + "/*"); n != 1 {
		t.Errorf("rm ran %d times, want 1", n)
	}
	for _, dir := range []string{paths.Base, paths.Video, paths.Image} {
		ok, _ := f.TestPath(context.Background(), testSerial, dir, PathIsDir)
		if !ok {
			t.Errorf("directory %s missing after clean", dir)
		}
	}
}

func TestInstallAPK(t *testing.T) {
	f := newFakeBridge()
	mgr := NewAppManager(f, testPackage)

	if err := mgr.InstallAPK(context.Background(), testSerial, "/nonexistent/app.apk"); err == nil {
		t.Error("missing APK accepted")
	}

	apk := filepath.Join(t.TempDir(), "eldersvr.apk")
	if err := os.WriteFile(apk, []byte("apk bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := mgr.InstallAPK(context.Background(), testSerial, apk); err != nil {
		t.Fatal(err)
	}
	if len(f.installs) != 1 || f.installs[0] != testSerial+":"+apk {
		t.Errorf("installs = %v", f.installs)
	}
}
