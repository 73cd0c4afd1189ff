package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"eldersvr-cli/internal/api"
	"eldersvr-cli/internal/config"
	"eldersvr-cli/internal/download"
	"eldersvr-cli/internal/events"
	"eldersvr-cli/internal/manifest"
	"eldersvr-cli/internal/progress"
	"eldersvr-cli/internal/tui"
	"eldersvr-cli/internal/util"

	"github.com/spf13/cobra"
)

var fetchDataCmd = &cobra.Command{
	Use:   "fetch-data",
	Short: "Fetch the content catalog from the backend",
	Long:  `Fetch tags and films from the backend, generate the new_data.json manifest into the downloads root, and write the device credential file.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadWorkspaceConfig()
		if err != nil {
			os.Exit(1)
		}
		if err := runFetchData(cmd, cfg); err != nil {
			os.Exit(1)
		}
	},
}

func runFetchData(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()

	client := sessionClient(cfg)
	if !client.IsAuthenticated() {
		util.Default.Println("❌ Not authenticated. Please run 'eldersvr auth' first.")
		return api.ErrNotAuthenticated
	}

	util.Default.Println("📡 Fetching tags from backend...")
	tags, err := client.FetchTags(ctx)
	if err != nil {
		util.Default.Printf("❌ Failed to fetch tags: %v\n", err)
		return err
	}
	util.Default.Printf("🏷️  Retrieved %d tags\n", len(tags))

	util.Default.Println("📡 Fetching films from backend...")
	films, err := client.FetchFilms(ctx)
	if err != nil {
		util.Default.Printf("❌ Failed to fetch films: %v\n", err)
		return err
	}
	util.Default.Printf("🎞️  Retrieved %d films\n", len(films))

	util.Default.Printf("📝 Generating %s...\n", cfg.Paths.JSONFilename)
	m := api.BuildManifest(films, tags)
	m.Stamp()
	if err := m.Validate(); err != nil {
		util.Default.Printf("⚠️  Data validation issues: %v\n", err)
	}

	manifestPath := cfg.Paths.ManifestPath()
	if err := manifest.Save(m, manifestPath); err != nil {
		util.Default.Printf("❌ Failed to write manifest: %v\n", err)
		return err
	}

	email := client.User().Email
	if email == "" {
		email = cfg.Auth.Email
	}
	if err := client.WriteCredential(cfg.Paths.CredentialPath(), email); err != nil {
		util.Default.Printf("⚠️  Credential file not written: %v\n", err)
	}

	if state, err := config.LoadLocalState(); err == nil {
		state.Session.LastFetchAt = time.Now().Format(time.RFC3339)
		_ = state.Save()
	}

	summary := m.Summarize()
	util.Default.Printf("✅ Generated manifest with %d total assets to download\n", summary.EstimatedFiles)
	util.Default.Printf("   🎬 %d videos, 🖼️ %d thumbnails, 🏷️ %d tag images\n",
		summary.TotalVideos, summary.TotalThumbnails, summary.TotalTagImages)
	return nil
}

var (
	downloadQuality    string
	downloadImagesOnly bool
)

var downloadVideosCmd = &cobra.Command{
	Use:   "download-videos",
	Short: "Download all catalog assets",
	Long:  `Expand new_data.json into download tasks and run them through the bounded worker pool. Files already on disk are skipped.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadWorkspaceConfig()
		if err != nil {
			os.Exit(1)
		}
		scope, ok := downloadScope(cfg)
		if !ok {
			os.Exit(1)
		}
		if err := runDownload(cmd, cfg, scope); err != nil {
			os.Exit(1)
		}
	},
}

// downloadScope merges the quality flag with the config default.
func downloadScope(cfg *config.Config) (download.Scope, bool) {
	quality := downloadQuality
	if quality == "" {
		quality = cfg.Download.Quality
	}
	switch quality {
	case "high", "low", "both":
	default:
		util.Default.Printf("❌ Invalid quality %q (want high, low, or both)\n", quality)
		return download.Scope{}, false
	}
	return download.Scope{Quality: quality, ImagesOnly: downloadImagesOnly}, true
}

func ledgerPath() string {
	return filepath.Join(config.TempDirName, "downloads.db")
}

func runDownload(cmd *cobra.Command, cfg *config.Config, scope download.Scope) error {
	ctx := cmd.Context()

	m, err := manifest.Load(cfg.Paths.ManifestPath())
	if err != nil {
		util.Default.Printf("❌ %s not found or unreadable: %v\n", cfg.Paths.JSONFilename, err)
		util.Default.Println("💡 Please run 'eldersvr fetch-data' first")
		return err
	}

	ledger, err := download.OpenLedger(ledgerPath())
	if err != nil {
		util.Default.Printf("⚠️  Download ledger unavailable, hashes will not be recorded: %v\n", err)
	} else {
		defer ledger.Close()
		if cfg.ResetLedger {
			if err := ledger.Reset(); err != nil {
				util.Default.Printf("⚠️  Ledger reset failed: %v\n", err)
			}
		}
	}

	engine := download.NewEngine(download.OptionsFromConfig(cfg.Download, ledger))

	util.Default.Println("🚀 Starting download of all assets...")

	// The engine builds its stats object after expanding tasks; it hands the
	// pointer out on the started event so the dashboard can poll it live.
	statsCh := make(chan *progress.DownloadStats, 1)
	_ = events.GlobalBus.SubscribeOnce(events.EventDownloadStarted,
		func(stats *progress.DownloadStats, pending, skipped int) {
			statsCh <- stats
		})

	type outcome struct {
		stats *progress.DownloadStats
		err   error
	}
	resCh := make(chan outcome, 1)
	go func() {
		stats, err := engine.DownloadAll(ctx, m, cfg.Paths, scope)
		resCh <- outcome{stats, err}
	}()

	var res outcome
	if stdinIsTTY() {
		select {
		case stats := <-statsCh:
			if err := tui.RunDownloadDashboard(stats); err != nil {
				util.Default.Printf("⚠️  Dashboard error: %v\n", err)
			}
			res = <-resCh
		case res = <-resCh:
		}
	} else {
		res = <-resCh
	}

	if res.err != nil {
		util.Default.Printf("❌ Download failed: %v\n", res.err)
		return res.err
	}

	snap := res.stats.Snapshot()
	util.Default.Println("✅ Download completed!")
	util.Default.Printf("   🎬 High-res videos: %d\n", snap.VideosHigh)
	util.Default.Printf("   🎬 Low-res videos: %d\n", snap.VideosLow)
	util.Default.Printf("   🖼️ Thumbnails: %d\n", snap.Thumbnails)
	util.Default.Printf("   🏷️ Tag images: %d\n", snap.TagImages)
	if snap.Skipped > 0 {
		util.Default.Printf("   ⏭️ Skipped (already on disk): %d\n", snap.Skipped)
	}
	util.Default.Printf("   💾 %s in %s\n", util.FormatBytes(snap.Bytes), util.FormatDuration(snap.Elapsed))

	if snap.Failed > 0 {
		util.Default.Printf("⚠️  Failed downloads: %d\n", snap.Failed)
		return errDownloadsFailed
	}
	return nil
}

var errDownloadsFailed = errors.New("some downloads failed")

func init() {
	downloadVideosCmd.Flags().StringVar(&downloadQuality, "quality", "", "video quality to download: high, low, or both (default from config)")
	downloadVideosCmd.Flags().BoolVar(&downloadImagesOnly, "images-only", false, "skip videos, download thumbnails and tag images only")
}
