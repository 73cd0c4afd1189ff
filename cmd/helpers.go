package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"eldersvr-cli/internal/api"
	"eldersvr-cli/internal/config"
	"eldersvr-cli/internal/transfer"
	"eldersvr-cli/internal/transfer/adbclient"
	"eldersvr-cli/internal/util"

	"github.com/manifoldco/promptui"
)

// loadWorkspaceConfig loads and validates eldersvr.yaml, printing the same
// guidance everywhere a command needs a configured workspace.
func loadWorkspaceConfig() (*config.Config, error) {
	if !config.ConfigExists() {
		util.Default.Println("Config file not found")
		util.Default.Println("Run 'eldersvr init' to create one in this directory.")
		return nil, fmt.Errorf("no %s in current directory", config.ConfigFileName)
	}
	cfg, err := config.LoadAndValidateConfig()
	if err != nil {
		util.Default.Printf("❌ Configuration validation failed:\n%v\n", err)
		util.Default.Println("💡 Fix the issues above or run 'eldersvr init' to recreate the config")
		return nil, err
	}
	return cfg, nil
}

// newBridge builds the adb-backed device bridge from config.
func newBridge(cfg *config.Config) *adbclient.Client {
	binary := cfg.ADB.Binary
	if binary == "" {
		binary = "adb"
	}
	return adbclient.New(binary)
}

// checkBridge verifies the adb binary answers before a device command runs.
func checkBridge(ctx context.Context, bridge *adbclient.Client) error {
	if err := bridge.Ping(ctx); err != nil {
		util.Default.Printf("❌ ADB is not available: %v\n", err)
		util.Default.Println("💡 Install platform-tools and make sure 'adb' is on PATH (or set adb.binary in eldersvr.yaml)")
		return err
	}
	return nil
}

// configuredTargets builds the transfer targets from the serials stored in
// config. Scope flags narrow the list to one role.
func configuredTargets(cfg *config.Config, masterOnly, slaveOnly bool) ([]*transfer.DeviceTarget, error) {
	base := cfg.Paths.DevicePath
	if base == "" {
		base = config.DefaultDevicePath
	}

	var targets []*transfer.DeviceTarget
	if cfg.Devices.MasterSerial != "" && !slaveOnly {
		targets = append(targets, transfer.NewDeviceTarget(cfg.Devices.MasterSerial, transfer.RoleMaster, base))
	}
	if cfg.Devices.SlaveSerial != "" && !masterOnly {
		targets = append(targets, transfer.NewDeviceTarget(cfg.Devices.SlaveSerial, transfer.RoleSlave, base))
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no devices configured, run 'eldersvr select-devices' first")
	}
	return targets, nil
}

// promptResolution is the interactive conflict policy: one promptui question
// per device that has existing files, answered for the whole session.
func promptResolution() transfer.ResolutionFunc {
	return func(target *transfer.DeviceTarget, report *transfer.ConflictReport) (transfer.Resolution, error) {
		util.Default.Printf("⚠️  Device %s already has %d of the files to push:\n", target.Serial, len(report.Conflicts))
		show := report.Conflicts
		if len(show) > 5 {
			show = show[:5]
		}
		for _, c := range show {
			util.Default.Printf("   • %s (local %s, device %s)\n",
				c.Filename, util.FormatBytes(c.LocalSize), util.FormatBytes(c.RemoteSize))
		}
		if len(report.Conflicts) > 5 {
			util.Default.Printf("   … and %d more\n", len(report.Conflicts)-5)
		}

		prompt := promptui.Select{
			Label: fmt.Sprintf("How should %s handle existing files", target.Serial),
			Items: []string{
				"Skip existing files",
				"Override all existing files",
				"Cancel this transfer",
			},
		}
		_, answer, err := prompt.Run()
		if err != nil {
			return transfer.ResolutionCancel, nil
		}
		switch {
		case strings.HasPrefix(answer, "Skip"):
			return transfer.ResolutionSkipAll, nil
		case strings.HasPrefix(answer, "Override"):
			return transfer.ResolutionOverrideAll, nil
		default:
			return transfer.ResolutionCancel, nil
		}
	}
}

// resolutionFromFlags picks the conflict policy for a transfer run: --yes
// forces override-all, a non-TTY stdin falls back to skip-all, otherwise the
// user is prompted.
func resolutionFromFlags(assumeYes bool) transfer.ResolutionFunc {
	if assumeYes {
		return transfer.FixedResolution(transfer.ResolutionOverrideAll)
	}
	if fi, _ := os.Stdin.Stat(); fi != nil && (fi.Mode()&os.ModeCharDevice) == 0 {
		return transfer.FixedResolution(transfer.ResolutionSkipAll)
	}
	return promptResolution()
}

// stdinIsTTY reports whether interactive UI elements can take the terminal.
func stdinIsTTY() bool {
	fi, err := os.Stdin.Stat()
	return err == nil && (fi.Mode()&os.ModeCharDevice) != 0
}

// bridgeFor is the common preamble of every device command: load config,
// build the bridge, check it answers.
func bridgeFor(ctx context.Context) (*config.Config, *adbclient.Client, error) {
	cfg, err := loadWorkspaceConfig()
	if err != nil {
		return nil, nil, err
	}
	bridge := newBridge(cfg)
	if err := checkBridge(ctx, bridge); err != nil {
		return nil, nil, err
	}
	return cfg, bridge, nil
}

// sessionClient builds an api client carrying the token persisted by a
// previous 'eldersvr auth' in this workspace, if any.
func sessionClient(cfg *config.Config) *api.Client {
	client := api.NewClient(cfg.Backend)
	if state, err := config.LoadLocalState(); err == nil && state.Session.Token != "" {
		client.SetToken(state.Session.Token)
	}
	return client
}
