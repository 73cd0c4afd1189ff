package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"eldersvr-cli/internal/transfer"
	"eldersvr-cli/internal/transfer/adbclient"
)

// Manual smoke check for the adb bridge against a real connected device.
// Run with: go run ./test
func main() {
	fmt.Println("🧪 Testing ADB Bridge Against a Connected Device")
	fmt.Println("==================================================")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	bridge := adbclient.New(os.Getenv("ADB_BINARY"))

	if err := bridge.Ping(ctx); err != nil {
		log.Fatalf("❌ adb not available: %v", err)
	}
	fmt.Println("✅ adb binary answers")

	devices, err := bridge.ListDevices(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to list devices: %v", err)
	}
	if len(devices) == 0 {
		log.Fatalf("❌ No devices attached, plug one in and retry")
	}

	var target *transfer.DeviceTarget
	for _, d := range devices {
		fmt.Printf("   📱 %s [%s] %s\n", d.Serial, d.Status, d.Model)
		if target == nil && d.Usable() {
			target = transfer.NewDeviceTarget(d.Serial, transfer.RoleMaster, "/storage/emulated/0/Download/EldersVR")
		}
	}
	if target == nil {
		log.Fatalf("❌ No usable device (all unauthorized or offline)")
	}
	fmt.Printf("✅ Using device %s\n", target.Serial)

	resolver := transfer.NewStorageResolver(bridge, "")
	if err := resolver.Resolve(ctx, target); err != nil {
		log.Fatalf("❌ No writable storage path: %v", err)
	}
	fmt.Printf("✅ Writable base resolved: %s\n", target.Paths.Base)

	if err := bridge.Mkdirs(ctx, target.Serial, target.Paths.Video); err != nil {
		log.Fatalf("❌ Failed to create %s: %v", target.Paths.Video, err)
	}
	fmt.Println("✅ Directory structure created")

	// Round-trip a small file through push + shell cat
	local := filepath.Join(os.TempDir(), "eldersvr_smoke.txt")
	if err := os.WriteFile(local, []byte("smoke\n"), 0644); err != nil {
		log.Fatalf("❌ Failed to write temp file: %v", err)
	}
	defer os.Remove(local)

	remote := target.Paths.Base + "/eldersvr_smoke.txt"
	if err := bridge.Push(ctx, target.Serial, local, remote); err != nil {
		log.Fatalf("❌ Push failed: %v", err)
	}
	fmt.Println("✅ Push succeeded")

	res, err := bridge.Shell(ctx, target.Serial, "cat", remote)
	if err != nil || res.ExitCode != 0 {
		log.Fatalf("❌ Readback failed: %v (exit %d)", err, res.ExitCode)
	}
	if res.Stdout != "smoke\n" {
		log.Fatalf("❌ Readback mismatch: %q", res.Stdout)
	}
	fmt.Println("✅ Readback matches")

	if err := bridge.Remove(ctx, target.Serial, remote); err != nil {
		log.Fatalf("❌ Cleanup failed: %v", err)
	}
	fmt.Println("✅ Remote file removed")

	fmt.Println("🎉 Testing completed!")
	fmt.Println("====================================")
	fmt.Println("Summary:")
	fmt.Println("- adb reachable: ✅")
	fmt.Println("- Device listing: ✅")
	fmt.Println("- Storage resolution: ✅")
	fmt.Println("- Push + readback: ✅")
	fmt.Println("- Cleanup: ✅")
}
