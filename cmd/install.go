package cmd

import (
	"os"

	"eldersvr-cli/internal/transfer"
	"eldersvr-cli/internal/util"

	"github.com/spf13/cobra"
)

var (
	installApkPath string
	installLaunch  bool
)

var installAppCmd = &cobra.Command{
	Use:   "install-app",
	Short: "Install the EldersVR player APK on the configured devices",
	Long:  `Install or upgrade the player app (adb install -r) on every configured device. The APK path comes from adb.apk_path in eldersvr.yaml unless --apk is given.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg, bridge, err := bridgeFor(ctx)
		if err != nil {
			os.Exit(1)
		}

		apk := installApkPath
		if apk == "" {
			apk = cfg.ADB.APKPath
		}
		if apk == "" {
			util.Default.Println("❌ No APK path configured. Set adb.apk_path in eldersvr.yaml or pass --apk.")
			os.Exit(1)
		}

		targets, err := configuredTargets(cfg, false, false)
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			os.Exit(1)
		}

		apps := transfer.NewAppManager(bridge, cfg.ADB.AppPackage)
		failed := 0
		for _, target := range targets {
			util.Default.Printf("📱 %s device %s:\n", roleTitle(target.Role), target.Serial)

			installed, err := apps.IsInstalled(ctx, target.Serial)
			if err != nil {
				util.Default.Printf("⚠️  Could not check installed state: %v\n", err)
			} else if installed {
				util.Default.Printf("🔄 %s already installed, upgrading...\n", cfg.ADB.AppPackage)
			} else {
				util.Default.Printf("📦 Installing %s...\n", cfg.ADB.AppPackage)
			}

			if err := apps.InstallAPK(ctx, target.Serial, apk); err != nil {
				util.Default.Printf("❌ Install failed on %s: %v\n", target.Serial, err)
				failed++
				continue
			}
			util.Default.Printf("✅ Installed on %s\n", target.Serial)

			if installLaunch {
				if err := apps.LaunchApp(ctx, target.Serial); err != nil {
					util.Default.Printf("⚠️  Launch failed on %s: %v\n", target.Serial, err)
				} else {
					util.Default.Printf("▶️  Launched %s on %s\n", cfg.ADB.AppPackage, target.Serial)
				}
			}
		}

		if failed > 0 {
			util.Default.Printf("⚠️  Install failed on %d %s\n", failed, util.Pluralize(failed, "device", "devices"))
			os.Exit(1)
		}
	},
}

func init() {
	installAppCmd.Flags().StringVar(&installApkPath, "apk", "", "path to the APK to install")
	installAppCmd.Flags().BoolVar(&installLaunch, "launch", false, "launch the app after a successful install")
}
