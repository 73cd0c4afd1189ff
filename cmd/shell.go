package cmd

import (
	"os"

	"eldersvr-cli/internal/transfer"
	"eldersvr-cli/internal/util"

	"github.com/spf13/cobra"
)

var shellSerial string

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open an interactive adb shell on a device",
	Long:  `Attach the local terminal to 'adb shell' on a device under a PTY, with raw-mode input and window resizes passed through.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, bridge, err := bridgeFor(cmd.Context())
		if err != nil {
			os.Exit(1)
		}

		serial := shellSerial
		if serial == "" && cfg.Devices.MasterSerial != "" {
			serial = cfg.Devices.MasterSerial
			util.Default.Printf("📱 No --serial given, using master device %s\n", serial)
		}
		if serial == "" {
			serial, err = pickConnectedDevice(cmd, bridge)
			if err != nil {
				os.Exit(1)
			}
		}

		binary := cfg.ADB.Binary
		if binary == "" {
			binary = "adb"
		}

		if err := transfer.InteractiveShell(cmd.Context(), binary, serial); err != nil {
			util.Default.Printf("❌ Shell session failed: %v\n", err)
			os.Exit(1)
		}
		util.Default.Println("👋 Shell session ended")
	},
}

func init() {
	shellCmd.Flags().StringVar(&shellSerial, "serial", "", "device serial (default: configured master)")
}
