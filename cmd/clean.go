package cmd

import (
	"fmt"
	"os"

	"eldersvr-cli/internal/config"
	"eldersvr-cli/internal/transfer"
	"eldersvr-cli/internal/tui"
	"eldersvr-cli/internal/util"

	"github.com/spf13/cobra"
)

var cleanSerial string

var cleanDeviceCmd = &cobra.Command{
	Use:   "clean-device",
	Short: "Wipe EldersVR content and app data from a device",
	Long: `Remove everything under the EldersVR directory tree on a device and clear
the player app's data. The empty directory structure is recreated so a
fresh transfer can follow. The device serial must be typed back to confirm.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg, bridge, err := bridgeFor(ctx)
		if err != nil {
			os.Exit(1)
		}

		serial := cleanSerial
		if serial == "" {
			serial, err = pickConnectedDevice(cmd, bridge)
			if err != nil {
				os.Exit(1)
			}
		}

		ok, err := tui.ConfirmDestructive(
			fmt.Sprintf("This wipes all EldersVR content and app data on %s.", serial), serial, 3)
		if err != nil {
			util.Default.Printf("❌ Confirmation failed: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			return
		}

		if err := runCleanDevice(cmd, cfg, bridge, serial); err != nil {
			os.Exit(1)
		}
	},
}

func pickConnectedDevice(cmd *cobra.Command, bridge transfer.DeviceBridge) (string, error) {
	devices, err := bridge.ListDevices(cmd.Context())
	if err != nil {
		util.Default.Printf("❌ Failed to list devices: %v\n", err)
		return "", err
	}
	var items []string
	for _, d := range devices {
		if d.Usable() {
			items = append(items, fmt.Sprintf("%s :: %s", d.Serial, deviceLabel(d)))
		}
	}
	if len(items) == 0 {
		util.Default.Println("⚠️  No usable ADB devices found")
		return "", fmt.Errorf("no usable devices")
	}
	if !stdinIsTTY() {
		util.Default.Println("❌ --serial is required when not running interactively")
		return "", fmt.Errorf("no serial given")
	}

	choice, err := tui.ShowMenu(items, "Select device to clean")
	if err != nil {
		util.Default.Println("⏭️  Cancelled")
		return "", err
	}
	return serialFromItem(choice), nil
}

func runCleanDevice(cmd *cobra.Command, cfg *config.Config, bridge transfer.DeviceBridge, serial string) error {
	ctx := cmd.Context()

	base := cfg.Paths.DevicePath
	if base == "" {
		base = config.DefaultDevicePath
	}
	target := transfer.NewDeviceTarget(serial, transfer.RoleMaster, base)

	resolver := transfer.NewStorageResolver(bridge, cfg.ADB.AppPackage)
	if err := resolver.Resolve(ctx, target); err != nil {
		util.Default.Printf("❌ No reachable EldersVR directory on %s: %v\n", serial, err)
		return err
	}

	apps := transfer.NewAppManager(bridge, cfg.ADB.AppPackage)

	util.Default.Printf("🧹 Cleaning %s on %s...\n", target.Paths.Base, serial)
	if err := apps.CleanContent(ctx, serial, target.Paths); err != nil {
		util.Default.Printf("❌ Content cleanup failed: %v\n", err)
		return err
	}
	util.Default.Println("🗑️  Content removed, directory tree recreated")

	if installed, err := apps.IsInstalled(ctx, serial); err == nil && installed {
		if err := apps.ClearAppData(ctx, serial); err != nil {
			util.Default.Printf("⚠️  App data not cleared: %v\n", err)
		} else {
			util.Default.Printf("🗑️  Cleared app data for %s\n", cfg.ADB.AppPackage)
		}
	}

	util.Default.Printf("✅ Device %s cleaned\n", serial)
	return nil
}

func init() {
	cleanDeviceCmd.Flags().StringVar(&cleanSerial, "serial", "", "device serial to clean")
}
