package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"eldersvr-cli/internal/config"
	"eldersvr-cli/internal/transfer"
	"eldersvr-cli/internal/tui"
	"eldersvr-cli/internal/util"

	"github.com/spf13/cobra"
)

var listDevicesCmd = &cobra.Command{
	Use:   "list-devices",
	Short: "List connected ADB devices",
	Run: func(cmd *cobra.Command, args []string) {
		_, bridge, err := bridgeFor(cmd.Context())
		if err != nil {
			os.Exit(1)
		}

		devices, err := bridge.ListDevices(cmd.Context())
		if err != nil {
			util.Default.Printf("❌ Failed to list devices: %v\n", err)
			os.Exit(1)
		}
		if len(devices) == 0 {
			util.Default.Println("⚠️  No ADB devices found")
			os.Exit(1)
		}

		util.Default.Println("\n📱 Available ADB Devices:")
		for i, d := range devices {
			util.Default.Printf("%d. %s - %s [%s]\n", i+1, d.Serial, deviceLabel(d), d.Status)
		}
	},
}

// deviceLabel renders "model (product)" with fallbacks for devices that
// report neither.
func deviceLabel(d transfer.Device) string {
	switch {
	case d.Model != "" && d.Product != "":
		return fmt.Sprintf("%s (%s)", d.Model, d.Product)
	case d.Model != "":
		return d.Model
	case d.Product != "":
		return d.Product
	default:
		return "Unknown"
	}
}

var (
	selectMaster string
	selectSlave  string
)

var selectDevicesCmd = &cobra.Command{
	Use:   "select-devices",
	Short: "Choose the master and slave devices",
	Long:  `Pick which connected device acts as master and which as slave, and persist the serials into eldersvr.yaml. Without flags an interactive picker is shown.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, bridge, err := bridgeFor(cmd.Context())
		if err != nil {
			os.Exit(1)
		}
		if err := runSelectDevices(cmd.Context(), cfg, bridge, selectMaster, selectSlave); err != nil {
			os.Exit(1)
		}
	},
}

func runSelectDevices(ctx context.Context, cfg *config.Config, bridge transfer.DeviceBridge, master, slave string) error {
	devices, err := bridge.ListDevices(ctx)
	if err != nil {
		util.Default.Printf("❌ Failed to list devices: %v\n", err)
		return err
	}

	var usable []transfer.Device
	for _, d := range devices {
		if d.Usable() {
			usable = append(usable, d)
		} else {
			util.Default.Printf("🚫 Skipping %s (state: %s)\n", d.Serial, d.Status)
		}
	}

	connected := func(serial string) bool {
		for _, d := range usable {
			if d.Serial == serial {
				return true
			}
		}
		return false
	}

	// flag path: validate the given serials are attached, like the picker does
	if master != "" || slave != "" {
		if master != "" && !connected(master) {
			util.Default.Printf("❌ Master device %s not connected\n", master)
			return fmt.Errorf("master device %s not connected", master)
		}
		if slave != "" && !connected(slave) {
			util.Default.Printf("❌ Slave device %s not connected\n", slave)
			return fmt.Errorf("slave device %s not connected", slave)
		}
		if master != "" {
			cfg.Devices.MasterSerial = master
			util.Default.Printf("🎯 Master device set to: %s\n", master)
		}
		if slave != "" {
			cfg.Devices.SlaveSerial = slave
			util.Default.Printf("🎯 Slave device set to: %s\n", slave)
		}
		return saveDeviceSelection(cfg)
	}

	if len(usable) == 0 {
		util.Default.Println("⚠️  No usable ADB devices found")
		return fmt.Errorf("no usable devices")
	}

	items := make([]string, 0, len(usable))
	for _, d := range usable {
		items = append(items, fmt.Sprintf("%s :: %s", d.Serial, deviceLabel(d)))
	}

	choice, err := tui.ShowMenu(items, "Select MASTER device")
	if err != nil {
		util.Default.Println("⏭️  Selection cancelled")
		return err
	}
	cfg.Devices.MasterSerial = serialFromItem(choice)

	var slaveItems []string
	for _, it := range items {
		if serialFromItem(it) != cfg.Devices.MasterSerial {
			slaveItems = append(slaveItems, it)
		}
	}
	slaveItems = append(slaveItems, "none :: master-only setup")

	choice, err = tui.ShowMenu(slaveItems, "Select SLAVE device")
	if err != nil {
		util.Default.Println("⏭️  Selection cancelled")
		return err
	}
	if serial := serialFromItem(choice); serial != "none" {
		cfg.Devices.SlaveSerial = serial
	} else {
		cfg.Devices.SlaveSerial = ""
	}

	util.Default.Printf("🎯 Master: %s\n", cfg.Devices.MasterSerial)
	if cfg.Devices.SlaveSerial != "" {
		util.Default.Printf("🎯 Slave: %s\n", cfg.Devices.SlaveSerial)
	} else {
		util.Default.Println("🎯 Slave: none")
	}
	return saveDeviceSelection(cfg)
}

func serialFromItem(item string) string {
	serial, _, _ := strings.Cut(item, " :: ")
	return strings.TrimSpace(serial)
}

func saveDeviceSelection(cfg *config.Config) error {
	if err := config.SaveConfig(cfg); err != nil {
		util.Default.Printf("❌ Failed to save device selection: %v\n", err)
		return err
	}
	util.Default.Println("✅ Device selection saved")
	return nil
}

func init() {
	selectDevicesCmd.Flags().StringVar(&selectMaster, "master", "", "master device serial")
	selectDevicesCmd.Flags().StringVar(&selectSlave, "slave", "", "slave device serial")
}
