package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"eldersvr-cli/internal/download"
	"eldersvr-cli/internal/events"
	"eldersvr-cli/internal/transfer"
	"eldersvr-cli/internal/util"

	"github.com/spf13/cobra"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-push device content whenever local downloads change",
	Long: `Watch the downloads root and, after changes settle, push the changed files
to the configured devices. Useful while content is being curated on the
provisioning machine.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg, bridge, err := bridgeFor(ctx)
		if err != nil {
			os.Exit(1)
		}
		targets, err := configuredTargets(cfg, false, false)
		if err != nil {
			util.Default.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		if _, err := os.Stat(cfg.Paths.LocalDownloads); err != nil {
			util.Default.Printf("❌ Downloads root %s not accessible: %v\n", cfg.Paths.LocalDownloads, err)
			os.Exit(1)
		}

		// One engine for the whole session so storage resolution and the
		// root probe run once per device, not once per change.
		engine := transfer.NewEngine(bridge, cfg.ADB.AppPackage, cfg.Paths, nil,
			transfer.FixedResolution(transfer.ResolutionOverrideAll))

		// The ledger knows each asset's download hash, so events that do not
		// change content (metadata touches, re-downloads of identical files)
		// never trigger a push. Hashes pushed this session are tracked too.
		ledger, lerr := download.OpenLedger(ledgerPath())
		if lerr != nil {
			util.Default.Printf("⚠️  Download ledger unavailable, every event will re-push: %v\n", lerr)
		} else {
			defer ledger.Close()
		}
		lastPushed := map[string]string{}

		changedSince := func(p string) (string, bool) {
			hash, err := download.HashFile(p)
			if err != nil {
				return "", true
			}
			if prev, ok := lastPushed[p]; ok {
				return hash, prev != hash
			}
			if ledger != nil {
				if rec, err := ledger.Lookup(filepath.Base(p)); err == nil && rec != nil && rec.Hash == hash {
					return hash, false
				}
			}
			return hash, true
		}

		onChange := func(ctx context.Context, changed []string) {
			util.Default.Printf("🔄 %s changed, pushing to devices...\n",
				util.Pluralize(len(changed), "local file", "local files"))
			pushed, failed, identical := 0, 0, 0
			for _, p := range changed {
				if _, err := os.Stat(p); err != nil {
					continue // deleted or renamed away since the event
				}
				hash, modified := changedSince(p)
				if !modified {
					identical++
					continue
				}

				okAny := false
				for _, target := range targets {
					ok, err := engine.PushSingle(ctx, target, p)
					if err != nil {
						util.Default.Printf("⚠️  %s → %s: %v\n", filepath.Base(p), target.Serial, err)
						failed++
						continue
					}
					if ok {
						pushed++
						okAny = true
					}
				}
				if okAny && hash != "" {
					lastPushed[p] = hash
				}
			}
			switch {
			case failed > 0:
				util.Default.Printf("⚠️  Re-push finished with %d failures\n", failed)
			case pushed > 0:
				util.Default.Printf("✅ Pushed %s\n", util.Pluralize(pushed, "file update", "file updates"))
			case identical > 0:
				util.Default.Println("⏭️  Content identical to the last push, nothing to do")
			default:
				util.Default.Println("⏭️  No changes relevant to the configured devices")
			}
		}

		watcher := transfer.NewWatcher(cfg.Paths.LocalDownloads, watchDebounce, onChange)
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			util.Default.Printf("❌ Watcher stopped: %v\n", err)
			// cancel the command tree before the process exits
			events.GlobalBus.Publish(events.EventShutdownRequested, err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "settle time before a change triggers a re-push")
}
