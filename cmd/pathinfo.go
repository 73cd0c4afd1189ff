package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"eldersvr-cli/internal/config"
	"eldersvr-cli/internal/download"
	"eldersvr-cli/internal/util"

	"github.com/spf13/cobra"
)

var pathinfoCmd = &cobra.Command{
	Use:   "path-info",
	Short: "Display path information for debugging",
	Long: `Display comprehensive path information including:
- Current working directory and executable paths
- Workspace root detection
- Downloads root contents
- Download ledger statistics
- ADB binary resolution

This command is useful for debugging path resolution issues.`,
	Run: runPathInfo,
}

func runPathInfo(cmd *cobra.Command, args []string) {
	fmt.Println("🔍 EldersVR Path Information")
	fmt.Println("=" + strings.Repeat("=", 35))
	fmt.Println()

	wd, err := os.Getwd()
	if err != nil {
		fmt.Printf("❌ Failed to get working directory: %v\n", err)
		wd = "<unknown>"
	}
	fmt.Printf("📂 Current Working Directory: %s\n", wd)

	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("❌ Failed to get executable path: %v\n", err)
		exePath = "<unknown>"
	}
	fmt.Printf("🔧 Executable Path (original): %s\n", exePath)

	resolvedPath := exePath
	if resolved, err := filepath.EvalSymlinks(exePath); err == nil {
		resolvedPath = resolved
	}
	if resolvedPath != exePath {
		fmt.Printf("🔗 Executable Path (resolved): %s\n", resolvedPath)
		fmt.Printf("   └─ Symlink detected\n")
	} else {
		fmt.Printf("🔗 Executable Path (resolved): %s (no symlink)\n", resolvedPath)
	}

	fmt.Println()
	fmt.Println("📁 Workspace Detection:")
	fmt.Println(strings.Repeat("-", 25))

	root, err := util.FindWorkspaceRoot(wd)
	if err != nil {
		fmt.Printf("❌ No %s found from here upward\n", config.ConfigFileName)
	} else {
		fmt.Printf("✅ Workspace root: %s\n", root)
		fmt.Printf("✅ Config file: %s\n", filepath.Join(root, config.ConfigFileName))
	}

	fmt.Println()
	fmt.Println("📥 Downloads Root:")
	fmt.Println(strings.Repeat("-", 25))

	cfg, err := config.LoadAndValidateConfig()
	if err != nil {
		fmt.Printf("⚠️  Config not loadable: %v\n", err)
	} else {
		fmt.Printf("📂 Root: %s\n", cfg.Paths.LocalDownloads)
		printDirSummary("🎬 Videos", cfg.Paths.VideosDir())
		printDirSummary("🖼️ Images", cfg.Paths.ImagesDir())
		printFilePresence("📝 Manifest", cfg.Paths.ManifestPath())
		printFilePresence("🔑 Credential", cfg.Paths.CredentialPath())
	}

	fmt.Println()
	fmt.Println("🗃️  Download Ledger:")
	fmt.Println(strings.Repeat("-", 25))

	if ledger, err := download.OpenLedger(ledgerPath()); err != nil {
		fmt.Printf("⚠️  Ledger not available: %v\n", err)
	} else {
		if files, size, err := ledger.Stats(); err != nil {
			fmt.Printf("⚠️  Stats query failed: %v\n", err)
		} else {
			fmt.Printf("📦 %d recorded assets, %s\n", files, util.FormatBytes(size))
		}
		ledger.Close()
	}

	fmt.Println()
	fmt.Println("🔌 ADB Resolution:")
	fmt.Println(strings.Repeat("-", 25))

	binary := "adb"
	if cfg != nil && cfg.ADB.Binary != "" {
		binary = cfg.ADB.Binary
	}
	if full, err := exec.LookPath(binary); err != nil {
		fmt.Printf("❌ %q not found on PATH\n", binary)
	} else {
		fmt.Printf("✅ %s -> %s\n", binary, full)
	}

	if state, err := config.LoadLocalState(); err == nil && state.Session.ID != "" {
		fmt.Println()
		fmt.Println("🪪 Session:")
		fmt.Println(strings.Repeat("-", 25))
		fmt.Printf("🆔 %s\n", state.Session.ID)
		if state.Session.TokenSavedAt != "" {
			fmt.Printf("🔑 Token acquired: %s\n", state.Session.TokenSavedAt)
		}
		if state.Session.LastFetchAt != "" {
			fmt.Printf("📡 Last fetch: %s\n", state.Session.LastFetchAt)
		}
		if state.Session.LastDeployAt != "" {
			fmt.Printf("🚀 Last deploy: %s\n", state.Session.LastDeployAt)
		}
	}
}

func printDirSummary(label, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Printf("%s: %s (missing)\n", label, dir)
		return
	}
	files := 0
	var size int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files++
		if info, err := e.Info(); err == nil {
			size += info.Size()
		}
	}
	fmt.Printf("%s: %s (%d files, %s)\n", label, dir, files, util.FormatBytes(size))
}

func printFilePresence(label, path string) {
	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("%s: %s (missing)\n", label, path)
		return
	}
	fmt.Printf("%s: %s (%s)\n", label, path, util.FormatBytes(info.Size()))
}
