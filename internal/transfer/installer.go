package transfer

import (
	"context"
	"fmt"
	"os"
	"strings"

	"eldersvr-cli/internal/util"
)

// AppManager drives app-level operations on a device: APK install, app data
// reset, launch, and content cleanup.
type AppManager struct {
	bridge DeviceBridge
	pkg    string
}

func NewAppManager(bridge DeviceBridge, appPackage string) *AppManager {
	return &AppManager{bridge: bridge, pkg: appPackage}
}

func (m *AppManager) InstallAPK(ctx context.Context, serial, apkPath string) error {
	if _, err := os.Stat(apkPath); err != nil {
		return fmt.Errorf("APK not found: %s", apkPath)
	}
	util.Default.Printf("📦 Installing %s on %s...\n", apkPath, serial)
	if err := m.bridge.Install(ctx, serial, apkPath); err != nil {
		return fmt.Errorf("install failed on %s: %v", serial, err)
	}
	util.Default.Printf("✅ App installed on %s\n", serial)
	return nil
}

func (m *AppManager) IsInstalled(ctx context.Context, serial string) (bool, error) {
	res, err := m.bridge.Shell(ctx, serial, "pm", "list", "packages", m.pkg)
	if err != nil {
		return false, err
	}
	return strings.Contains(res.Stdout, "package:"+m.pkg), nil
}

// ClearAppData wipes the app's private storage so the next launch re-reads
// the pushed content.
func (m *AppManager) ClearAppData(ctx context.Context, serial string) error {
	res, err := m.bridge.Shell(ctx, serial, "pm", "clear", m.pkg)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 || !strings.Contains(res.Stdout, "Success") {
		return fmt.Errorf("pm clear %s failed on %s: %s", m.pkg, serial, strings.TrimSpace(res.Stdout+res.Stderr))
	}
	util.Default.Printf("🧹 Cleared app data for %s on %s\n", m.pkg, serial)
	return nil
}

func (m *AppManager) LaunchApp(ctx context.Context, serial string) error {
	res, err := m.bridge.Shell(ctx, serial, "monkey", "-p", m.pkg, "-c", "android.intent.category.LAUNCHER", "1")
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("launch failed on %s: %s", serial, strings.TrimSpace(res.Stderr))
	}
	util.Default.Printf("🚀 Launched %s on %s\n", m.pkg, serial)
	return nil
}

// CleanContent removes everything under the content root and recreates the
// empty directory tree. The glob goes over as one string so the device shell
// expands it.
func (m *AppManager) CleanContent(ctx context.Context, serial string, paths DevicePaths) error {
	if _, err := m.bridge.Shell(ctx, serial, fmt.Sprintf("rm -rf %s/*", paths.Base)); err != nil {
		return fmt.Errorf("could not clean %s on %s: %v", paths.Base, serial, err)
	}
	for _, dir := range []string{paths.Base, paths.Video, paths.Image} {
		if err := m.bridge.Mkdirs(ctx, serial, dir); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrDirectoryCreateFailed, dir, err)
		}
	}
	util.Default.Printf("🗑️  Cleaned content on %s\n", serial)
	return nil
}
