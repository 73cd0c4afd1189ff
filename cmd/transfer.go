package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"eldersvr-cli/internal/config"
	"eldersvr-cli/internal/download"
	"eldersvr-cli/internal/history"
	"eldersvr-cli/internal/transfer"
	"eldersvr-cli/internal/tui"
	"eldersvr-cli/internal/util"

	"github.com/spf13/cobra"
)

var (
	transferMasterOnly bool
	transferSlaveOnly  bool
	transferVideosOnly bool
	transferJSONOnly   bool
	transferYes        bool
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Push downloaded assets to the configured devices",
	Long: `Push the manifest, credential, videos, and images to the configured master
and slave devices. The master receives low-res videos plus the credential
file, the slave receives high-res videos; both receive the manifest and all
images. Files already on a device raise one skip/override/cancel question
per device.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, bridge, err := bridgeFor(cmd.Context())
		if err != nil {
			os.Exit(1)
		}
		flags := transfer.ScopeFlags{VideosOnly: transferVideosOnly, JSONOnly: transferJSONOnly}
		if err := runTransfer(cmd.Context(), cfg, bridge, flags, transferMasterOnly, transferSlaveOnly, resolutionFromFlags(transferYes)); err != nil {
			os.Exit(1)
		}
	},
}

func runTransfer(ctx context.Context, cfg *config.Config, bridge transfer.DeviceBridge, flags transfer.ScopeFlags, masterOnly, slaveOnly bool, resolve transfer.ResolutionFunc) error {
	targets, err := configuredTargets(cfg, masterOnly, slaveOnly)
	if err != nil {
		util.Default.Printf("❌ %v\n", err)
		return err
	}

	rec := history.NewRunRecord("transfer", workspaceName())
	for _, t := range targets {
		rec.Devices = append(rec.Devices, t.Serial)
	}

	engine := transfer.NewEngine(bridge, cfg.ADB.AppPackage, cfg.Paths, nil, resolve)
	results := engine.TransferAll(ctx, targets, flags)

	util.Default.Println()
	util.Default.PrintBlock(tui.RenderTransferTable(engine.Progress().Snapshot()), false)

	ok := true
	pushed, failed := 0, 0
	for _, res := range results {
		pushed += res.FilesPushed()
		failed += res.FilesFailed()
		if res.Err != nil {
			if errors.Is(res.Err, transfer.ErrConflictCancelled) {
				util.Default.Printf("🚫 %s: cancelled at conflict prompt\n", res.Serial)
			} else {
				util.Default.Printf("❌ %s: %v\n", res.Serial, res.Err)
			}
			ok = false
		} else if !res.Success() {
			ok = false
		}
	}
	util.Default.Printf("📦 Pushed %d %s", pushed, util.Pluralize(pushed, "file", "files"))
	if failed > 0 {
		util.Default.Printf(", %d failed", failed)
	}
	util.Default.Println()

	rec.Succeeded = ok
	rec.Summary = fmt.Sprintf("%d pushed, %d failed", pushed, failed)
	if err := history.RecordRun(rec); err != nil {
		util.Default.Printf("⚠️  Run not recorded: %v\n", err)
	}

	if !ok {
		return errors.New("transfer finished with failures")
	}
	util.Default.Println("🎉 Transfer completed!")
	return nil
}

// workspaceName is the directory the config lives in, for run records.
func workspaceName() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "unknown"
	}
	return cwd
}

var verifyDevice string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify device storage or a finished deployment",
	Long: `With --device SERIAL, check that the EldersVR directory tree on that
device exists and is writable. Otherwise inspect every configured device:
manifest presence, credential presence on the master, pushed file counts,
and storage usage.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, bridge, err := bridgeFor(cmd.Context())
		if err != nil {
			os.Exit(1)
		}

		if verifyDevice != "" {
			if err := runVerifyDevice(cmd.Context(), cfg, bridge, verifyDevice); err != nil {
				os.Exit(1)
			}
			return
		}

		localErr := runVerifyLocal()
		if err := runVerifyDeployment(cmd.Context(), cfg, bridge); err != nil || localErr != nil {
			os.Exit(1)
		}
	},
}

// runVerifyLocal checks every recorded download still matches the hash the
// ledger stored at download time, catching corrupted or manually edited
// assets before anything touches a device.
func runVerifyLocal() error {
	ledger, err := download.OpenLedger(ledgerPath())
	if err != nil {
		util.Default.Printf("⚠️  Download ledger unavailable, skipping local integrity check: %v\n", err)
		return nil
	}
	defer ledger.Close()

	records, err := ledger.All()
	if err != nil {
		util.Default.Printf("⚠️  Ledger query failed: %v\n", err)
		return nil
	}
	if len(records) == 0 {
		util.Default.Println("ℹ️  No recorded downloads to check")
		return nil
	}

	util.Default.Printf("🔍 Checking %d local %s against the download ledger...\n",
		len(records), util.Pluralize(len(records), "asset", "assets"))

	missing, mismatched := 0, 0
	for _, rec := range records {
		if _, err := os.Stat(rec.LocalPath); err != nil {
			util.Default.Printf("❌ %s: missing from %s\n", rec.Filename, rec.LocalPath)
			missing++
			continue
		}
		ok, err := ledger.VerifyFile(rec.Filename, rec.LocalPath)
		if err != nil {
			util.Default.Printf("⚠️  %s: hash check failed: %v\n", rec.Filename, err)
			mismatched++
			continue
		}
		if !ok {
			util.Default.Printf("❌ %s: content differs from the downloaded file\n", rec.Filename)
			mismatched++
		}
	}

	if missing+mismatched > 0 {
		util.Default.Printf("⚠️  Local integrity: %d missing, %d modified\n", missing, mismatched)
		return fmt.Errorf("%d local assets failed integrity check", missing+mismatched)
	}
	util.Default.Println("✅ All local assets match their download hashes")
	return nil
}

// runVerifyDevice checks storage access on one device, creating the
// directory tree when it is missing.
func runVerifyDevice(ctx context.Context, cfg *config.Config, bridge transfer.DeviceBridge, serial string) error {
	util.Default.Printf("🔍 Verifying device %s...\n", serial)

	devices, err := bridge.ListDevices(ctx)
	if err != nil {
		util.Default.Printf("❌ Failed to list devices: %v\n", err)
		return err
	}
	found := false
	for _, d := range devices {
		if d.Serial == serial && d.Usable() {
			found = true
			break
		}
	}
	if !found {
		util.Default.Printf("❌ Device %s not found\n", serial)
		return fmt.Errorf("device %s not connected", serial)
	}

	base := cfg.Paths.DevicePath
	if base == "" {
		base = config.DefaultDevicePath
	}
	target := transfer.NewDeviceTarget(serial, transfer.RoleMaster, base)

	resolver := transfer.NewStorageResolver(bridge, cfg.ADB.AppPackage)
	if err := resolver.Resolve(ctx, target); err != nil {
		util.Default.Printf("❌ No writable storage path: %v\n", err)
		return err
	}
	util.Default.Printf("📁 Using %s\n", target.Paths.Base)

	for _, dir := range []string{target.Paths.Base, target.Paths.Video, target.Paths.Image} {
		if err := bridge.Mkdirs(ctx, serial, dir); err != nil {
			util.Default.Printf("❌ Failed to create %s: %v\n", dir, err)
			return err
		}
	}

	verifier := transfer.NewVerifier(bridge, cfg.Paths.JSONFilename)
	report, err := verifier.Verify(ctx, target)
	if err != nil {
		util.Default.Printf("❌ Verification failed: %v\n", err)
		return err
	}
	util.Default.Printf("💾 Storage used: %s, free: %s\n", report.UsedSpace, report.FreeSpace)
	util.Default.Println("✅ Device verification successful!")
	return nil
}

// runVerifyDeployment inspects all configured devices and fails when any is
// missing the manifest.
func runVerifyDeployment(ctx context.Context, cfg *config.Config, bridge transfer.DeviceBridge) error {
	targets, err := configuredTargets(cfg, false, false)
	if err != nil {
		util.Default.Printf("❌ %v\n", err)
		return err
	}

	verifier := transfer.NewVerifier(bridge, cfg.Paths.JSONFilename)
	resolver := transfer.NewStorageResolver(bridge, cfg.ADB.AppPackage)

	allVerified := true
	for _, target := range targets {
		util.Default.Printf("🔍 Verifying %s device %s...\n", roleTitle(target.Role), target.Serial)
		if err := resolver.Resolve(ctx, target); err != nil {
			util.Default.Printf("❌ %s: no writable storage path: %v\n", target.Serial, err)
			allVerified = false
			continue
		}

		report, err := verifier.Verify(ctx, target)
		if err != nil {
			util.Default.Printf("❌ %s: verification failed: %v\n", target.Serial, err)
			allVerified = false
			continue
		}

		util.Default.Printf("\n%s DEVICE (%s):\n", roleUpper(target.Role), target.Serial)
		util.Default.Printf("  JSON file: %s\n", okMark(report.ManifestOK))
		if target.Role == transfer.RoleMaster {
			util.Default.Printf("  Credential: %s\n", okMark(report.CredentialOK))
		}
		util.Default.Printf("  Video files: %d\n", report.VideoCount)
		util.Default.Printf("  Image files: %d\n", report.ImageCount)
		util.Default.Printf("  Storage used: %s (free %s)\n", report.UsedSpace, report.FreeSpace)

		if !report.ManifestOK {
			allVerified = false
		}
	}

	if !allVerified {
		return errors.New("deployment verification failed")
	}
	util.Default.Println("\n✅ Deployment verified on all configured devices")
	return nil
}

func okMark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

func roleTitle(role transfer.Role) string {
	if role == transfer.RoleMaster {
		return "master"
	}
	return "slave"
}

func roleUpper(role transfer.Role) string {
	if role == transfer.RoleMaster {
		return "MASTER"
	}
	return "SLAVE"
}

func init() {
	transferCmd.Flags().BoolVar(&transferMasterOnly, "master-only", false, "transfer to the master device only")
	transferCmd.Flags().BoolVar(&transferSlaveOnly, "slave-only", false, "transfer to the slave device only")
	transferCmd.Flags().BoolVar(&transferVideosOnly, "videos-only", false, "push only the video subset")
	transferCmd.Flags().BoolVar(&transferJSONOnly, "json-only", false, "push only the manifest and credential")
	transferCmd.Flags().BoolVar(&transferYes, "yes", false, "override existing files without prompting")

	verifyCmd.Flags().StringVar(&verifyDevice, "device", "", "verify storage access on one device by serial")
}
