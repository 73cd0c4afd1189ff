package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"eldersvr-cli/internal/config"
	"eldersvr-cli/internal/history"
	"eldersvr-cli/internal/pipeline"
	"eldersvr-cli/internal/transfer"
	"eldersvr-cli/internal/transfer/adbclient"
	"eldersvr-cli/internal/util"

	"github.com/spf13/cobra"
)

var (
	deployAuto         bool
	deploySkipAuth     bool
	deploySkipFetch    bool
	deploySkipDownload bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Run the complete provisioning pipeline",
	Long: `Authenticate, fetch the catalog, download assets, pick devices, transfer
per role, and verify, as one ordered pipeline with per-step timing. With
--auto the first connected device becomes master and the second slave.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadWorkspaceConfig()
		if err != nil {
			os.Exit(1)
		}
		if err := runDeploy(cmd, cfg); err != nil {
			os.Exit(1)
		}
	},
}

func runDeploy(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
	bridge := newBridge(cfg)

	rec := history.NewRunRecord("deploy", workspaceName())

	runner := pipeline.NewRunner("EldersVR deployment", []pipeline.Step{
		{
			Name: "Check ADB",
			Run: func(ctx context.Context) error {
				return checkBridge(ctx, bridge)
			},
		},
		{
			Name: "Authenticate",
			Skip: deploySkipAuth,
			Run: func(ctx context.Context) error {
				_, err := runAuth(cmd, cfg, "", "")
				return err
			},
		},
		{
			Name: "Fetch catalog",
			Skip: deploySkipFetch,
			Run: func(ctx context.Context) error {
				return runFetchData(cmd, cfg)
			},
		},
		{
			Name: "Download assets",
			Skip: deploySkipDownload,
			Run: func(ctx context.Context) error {
				scope, ok := downloadScope(cfg)
				if !ok {
					return fmt.Errorf("invalid download quality in config")
				}
				return runDownload(cmd, cfg, scope)
			},
		},
		{
			Name: "Select devices",
			Run: func(ctx context.Context) error {
				return ensureDeviceSelection(ctx, cfg, bridge, deployAuto)
			},
		},
		{
			Name: "Transfer to devices",
			Run: func(ctx context.Context) error {
				return runTransfer(ctx, cfg, bridge, transfer.ScopeFlags{}, false, false, resolutionFromFlags(false))
			},
		},
		{
			Name:            "Verify deployment",
			ContinueOnError: true,
			Run: func(ctx context.Context) error {
				return runVerifyDeployment(ctx, cfg, bridge)
			},
		},
	}...)

	results, err := runner.Execute(ctx)
	pipeline.PrintSummary(results)

	for _, step := range results {
		if step.Name == "Transfer to devices" && !step.Skipped {
			rec.Devices = append(rec.Devices, cfg.Devices.MasterSerial, cfg.Devices.SlaveSerial)
		}
	}
	rec.Succeeded = err == nil
	if err != nil {
		rec.Summary = err.Error()
	}
	if rerr := history.RecordRun(rec); rerr != nil {
		util.Default.Printf("⚠️  Run not recorded: %v\n", rerr)
	}

	if err != nil {
		util.Default.Printf("❌ Deployment pipeline failed: %v\n", err)
		return err
	}

	if state, serr := config.LoadLocalState(); serr == nil {
		state.Session.LastDeployAt = time.Now().Format(time.RFC3339)
		_ = state.Save()
	}

	util.Default.Println("🎉 Complete deployment pipeline finished!")
	return nil
}

// ensureDeviceSelection makes sure master/slave serials exist before the
// transfer step. In auto mode the first two connected devices are taken, in
// that order; otherwise the configured serials are required.
func ensureDeviceSelection(ctx context.Context, cfg *config.Config, bridge *adbclient.Client, auto bool) error {
	if auto {
		devices, err := bridge.ListDevices(ctx)
		if err != nil {
			return err
		}
		var usable []transfer.Device
		for _, d := range devices {
			if d.Usable() {
				usable = append(usable, d)
			}
		}
		if len(usable) < 2 {
			util.Default.Println("❌ At least 2 devices required for auto-detection")
			return fmt.Errorf("found %d usable devices, need 2", len(usable))
		}
		cfg.Devices.MasterSerial = usable[0].Serial
		cfg.Devices.SlaveSerial = usable[1].Serial
		util.Default.Printf("🎯 Auto-detected master: %s\n", cfg.Devices.MasterSerial)
		util.Default.Printf("🎯 Auto-detected slave: %s\n", cfg.Devices.SlaveSerial)
		return saveDeviceSelection(cfg)
	}

	if cfg.Devices.MasterSerial == "" && cfg.Devices.SlaveSerial == "" {
		util.Default.Println("❌ No devices configured. Run 'eldersvr select-devices' or use --auto.")
		return fmt.Errorf("no devices configured")
	}
	return nil
}

func init() {
	deployCmd.Flags().BoolVar(&deployAuto, "auto", false, "auto-detect devices: first connected is master, second is slave")
	deployCmd.Flags().BoolVar(&deploySkipAuth, "skip-auth", false, "skip authentication")
	deployCmd.Flags().BoolVar(&deploySkipFetch, "skip-fetch", false, "skip catalog fetching")
	deployCmd.Flags().BoolVar(&deploySkipDownload, "skip-download", false, "skip asset download")
}
