package cmd

import (
	"fmt"
	"os"

	"eldersvr-cli/internal/util"

	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec [-s serial] -- <command...>",
	Short: "Run a shell command on a device",
	Long:  `Run an arbitrary shell command on a device (non-PTY), print its output, and exit with the remote status. Defaults to the configured master device; use -s to target another serial.`,
	// everything after 'exec' belongs to the remote command
	DisableFlagParsing: true,
	Run: func(cmd *cobra.Command, args []string) {
		serial := ""
		if len(args) >= 2 && (args[0] == "-s" || args[0] == "--serial") {
			serial = args[1]
			args = args[2:]
		}
		if len(args) > 0 && args[0] == "--" {
			args = args[1:]
		}
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: eldersvr exec [-s serial] -- <command...>")
			os.Exit(1)
		}

		cfg, bridge, err := bridgeFor(cmd.Context())
		if err != nil {
			os.Exit(1)
		}

		if serial == "" {
			serial = cfg.Devices.MasterSerial
		}
		if serial == "" {
			fmt.Fprintln(os.Stderr, "No device configured. Run 'eldersvr select-devices' or pass -s <serial>.")
			os.Exit(1)
		}

		res, err := bridge.Shell(cmd.Context(), serial, args...)
		if err != nil {
			util.Default.Printf("❌ Shell command failed: %v\n", err)
			os.Exit(1)
		}
		if res.Stdout != "" {
			fmt.Print(res.Stdout)
		}
		if res.Stderr != "" {
			fmt.Fprint(os.Stderr, res.Stderr)
		}
		if res.ExitCode != 0 {
			os.Exit(res.ExitCode)
		}
	},
}
