package cmd

import (
	"context"
	"fmt"
	"os"

	"eldersvr-cli/internal/config"
	"eldersvr-cli/internal/history"
	"eldersvr-cli/internal/transfer"
	"eldersvr-cli/internal/util"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "eldersvr",
	Short: "EldersVR device onboarding tool",
	Long: `A CLI tool for provisioning EldersVR headsets: authenticate against the
backend, download the content catalog, and push it to master/slave devices
over ADB.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cwd, _ := os.Getwd()
		util.Default.Printf("You are in: %s\n", cwd)

		if config.ConfigExists() {
			cfg, err := config.LoadAndValidateConfig()
			if err != nil {
				util.Default.Printf("❌ Configuration validation failed:\n%v\n", err)
				util.Default.Println("💡 Fix the issues above or run 'eldersvr init' to recreate the config")
				return
			}
			util.Default.Println("✅ Configuration is valid!")
			printWorkspaceStatus(cfg)

			// Main menu loop - return to menu after each action
			for {
				select {
				case <-ctx.Done():
					util.Default.Println("⏹ Cancelled")
					return
				default:
				}
				continueMenu, newCfg := showMainMenu(ctx, cmd, cfg)
				if !continueMenu {
					break
				}
				if newCfg != nil {
					cfg = newCfg
				}
			}
		} else {
			util.Default.Println("Config file not found")
			util.Default.Println("USAGE:")
			util.Default.Println("Make sure you have the config file by running.")
			util.Default.Println("eldersvr init")
			util.Default.Println("------------------------------")
			showRecentWorkspacesMenu()
		}
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize config file",
	Long:  `Generate a default eldersvr.yaml config file in the current directory.`,
	Run: func(cmd *cobra.Command, args []string) {
		cwd, _ := os.Getwd()
		util.Default.Printf("You are in: %s\n", cwd)

		source, err := config.WriteInitialConfig()
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			return
		}
		if source == "builtin" {
			util.Default.Printf("✅ Created %s from built-in defaults\n", config.ConfigFileName)
		} else {
			util.Default.Printf("✅ Created %s from %s\n", config.ConfigFileName, source)
		}
		util.Default.Println("💡 Edit the backend and auth sections, then run 'eldersvr auth'")

		if err := history.AddWorkspace(cwd); err != nil {
			util.Default.Printf("⚠️  Workspace not recorded in history: %v\n", err)
		}
	},
}

// printWorkspaceStatus summarizes the workspace before the main menu shows.
func printWorkspaceStatus(cfg *config.Config) {
	if cfg.ProjectName != "" {
		util.Default.Printf("📦 Project: %s\n", cfg.ProjectName)
	}
	util.Default.Printf("📁 Downloads root: %s\n", cfg.Paths.LocalDownloads)

	switch {
	case cfg.Devices.MasterSerial != "" && cfg.Devices.SlaveSerial != "":
		util.Default.Printf("🎯 Devices: master %s, slave %s\n", cfg.Devices.MasterSerial, cfg.Devices.SlaveSerial)
	case cfg.Devices.MasterSerial != "":
		util.Default.Printf("🎯 Devices: master %s (no slave)\n", cfg.Devices.MasterSerial)
	default:
		util.Default.Println("🎯 Devices: none selected (run 'eldersvr select-devices')")
	}

	state, err := config.LoadLocalState()
	if err != nil {
		return
	}
	if state.Session.Token != "" {
		util.Default.Printf("🔑 Session: authenticated (since %s)\n", state.Session.TokenSavedAt)
	} else {
		util.Default.Println("🔑 Session: not authenticated")
	}
	if state.Session.LastFetchAt != "" {
		util.Default.Printf("🕐 Last fetch: %s\n", state.Session.LastFetchAt)
	}
	if state.Session.LastDeployAt != "" {
		util.Default.Printf("🕐 Last deploy: %s\n", state.Session.LastDeployAt)
	}
}

func showMainMenu(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (bool, *config.Config) {
	items := []string{
		"auth :: Sign in to the EldersVR backend",
		"fetch-data :: Refresh the content catalog",
		"download :: Download content assets",
		"devices :: List connected devices",
		"select-devices :: Choose master and slave devices",
		"transfer :: Push content to devices",
		"verify :: Check content on the devices",
		"deploy :: Run the full deployment pipeline",
		"Restart",
		"Exit",
	}

	prompt := promptui.Select{
		Label: "Select an option",
		Items: items,
		Size:  10,
	}

	_, result, err := prompt.Run()
	if err != nil {
		util.Default.Printf("Prompt failed %v\n", err)
		return false, nil
	}

	switch result {
	case "auth :: Sign in to the EldersVR backend":
		_, _ = runAuth(cmd, cfg, "", "")
		return true, nil
	case "fetch-data :: Refresh the content catalog":
		_ = runFetchData(cmd, cfg)
		return true, nil
	case "download :: Download content assets":
		scope, ok := downloadScope(cfg)
		if !ok {
			return true, nil
		}
		_ = runDownload(cmd, cfg, scope)
		return true, nil
	case "devices :: List connected devices":
		bridge := newBridge(cfg)
		if err := checkBridge(ctx, bridge); err != nil {
			return true, nil
		}
		devices, err := bridge.ListDevices(ctx)
		if err != nil {
			util.Default.Printf("❌ Failed to list devices: %v\n", err)
			return true, nil
		}
		if len(devices) == 0 {
			util.Default.Println("⚠️  No ADB devices found")
			return true, nil
		}
		util.Default.Println("\n📱 Available ADB Devices:")
		for i, d := range devices {
			util.Default.Printf("%d. %s - %s [%s]\n", i+1, d.Serial, deviceLabel(d), d.Status)
		}
		return true, nil
	case "select-devices :: Choose master and slave devices":
		bridge := newBridge(cfg)
		if err := checkBridge(ctx, bridge); err != nil {
			return true, nil
		}
		_ = runSelectDevices(ctx, cfg, bridge, "", "")
		return true, nil
	case "transfer :: Push content to devices":
		bridge := newBridge(cfg)
		if err := checkBridge(ctx, bridge); err != nil {
			return true, nil
		}
		_ = runTransfer(ctx, cfg, bridge, transfer.ScopeFlags{}, false, false, resolutionFromFlags(false))
		return true, nil
	case "verify :: Check content on the devices":
		bridge := newBridge(cfg)
		if err := checkBridge(ctx, bridge); err != nil {
			return true, nil
		}
		_ = runVerifyDeployment(ctx, cfg, bridge)
		return true, nil
	case "deploy :: Run the full deployment pipeline":
		_ = runDeploy(cmd, cfg)
		return true, nil
	case "Restart":
		util.Default.Println("🔄 Reloading configuration...")
		newCfg, err := config.LoadAndValidateConfig()
		if err != nil {
			util.Default.Printf("❌ Failed to reload configuration: %v\n", err)
			util.Default.Println("💡 Continuing with current configuration")
			return true, nil
		}
		util.Default.Println("✅ Configuration reloaded successfully!")
		return true, newCfg
	case "Exit":
		util.Default.Println("Exiting...")
		return false, nil
	}

	// Default: continue to menu
	return true, nil
}

func showRecentWorkspacesMenu() {
	paths := history.RecentWorkspaces()
	if len(paths) == 0 {
		util.Default.Println("No recent workspaces found.")
		return
	}

	prompt := promptui.SelectWithAdd{
		Label:    "Display recent workspaces (type to search)",
		Items:    paths,
		AddLabel: "Search",
	}

	idx, result, err := prompt.Run()
	if err != nil {
		util.Default.Printf("Prompt failed %v\n", err)
		return
	}

	if idx == -1 {
		// Search mode
		results := history.SearchWorkspaces(result)
		if len(results) == 0 {
			util.Default.Printf("No workspaces found matching '%s'\n", result)
			return
		}

		searchPrompt := promptui.Select{
			Label: "Search results",
			Items: results,
		}

		_, selected, err := searchPrompt.Run()
		if err != nil {
			util.Default.Printf("Prompt failed %v\n", err)
			return
		}
		result = selected
	}

	showWorkspaceSubMenu(result)
}

func showWorkspaceSubMenu(path string) {
	items := []string{
		"Show Recent Runs",
		"Remove From History",
		"Back",
	}

	prompt := promptui.Select{
		Label: fmt.Sprintf("Selected: %s", path),
		Items: items,
	}

	_, subResult, err := prompt.Run()
	if err != nil {
		util.Default.Printf("Prompt failed %v\n", err)
		return
	}

	switch subResult {
	case "Show Recent Runs":
		runs := history.RecentRuns(20)
		shown := 0
		for _, r := range runs {
			if r.Workspace != path {
				continue
			}
			mark := "✅"
			if !r.Succeeded {
				mark = "❌"
			}
			util.Default.Printf("%s %s  %s  %s\n", mark, r.StartedAt.Format("2006-01-02 15:04"), r.Command, r.Summary)
			shown++
		}
		if shown == 0 {
			util.Default.Println("No recorded runs for this workspace.")
		}
	case "Remove From History":
		if err := history.RemoveWorkspace(path); err != nil {
			util.Default.Printf("⚠️  Failed to remove from history: %v\n", err)
			return
		}
		util.Default.Printf("Removed from history: %s\n", path)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(fetchDataCmd)
	rootCmd.AddCommand(downloadVideosCmd)
	rootCmd.AddCommand(listDevicesCmd)
	rootCmd.AddCommand(selectDevicesCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(transferCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(installAppCmd)
	rootCmd.AddCommand(cleanDeviceCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(watchCmd)
	// register exec command
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(pathinfoCmd)
	rootCmd.AddCommand(dataCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// ExecuteContext allows running the root command with a supplied context for cancellation.
func ExecuteContext(ctx context.Context) error {
	rootCmd.SetContext(ctx)
	if err := rootCmd.Execute(); err != nil {
		return err
	}
	return nil
}
