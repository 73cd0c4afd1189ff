package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"eldersvr-cli/cmd"
	"eldersvr-cli/internal/config"
	"eldersvr-cli/internal/events"
	"eldersvr-cli/internal/util"

	"strings"

	gspt "github.com/erikdubbelboer/gspt"

	"golang.org/x/term"
)

// truncateToBytes truncates s to at most max bytes without splitting UTF-8 runes.
func truncateToBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	var b []byte
	for _, r := range s {
		rb := []byte(string(r))
		if len(b)+len(rb) > max {
			break
		}
		b = append(b, rb...)
	}
	if len(b) == 0 {
		return s[:max]
	}
	return string(b)
}

func main() {

	// Ensure .eldersvr_temp/logs directory exists for logging
	if err := os.MkdirAll(config.TempDirName+"/logs", 0755); err != nil {
		log.Fatalf("failed to create %s/logs directory: %v", config.TempDirName, err)
	}

	f, err := os.OpenFile(config.TempDirName+"/logs/cli.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatalf("failed to open log file: %v", err)
	}
	defer f.Close()

	// Route the standard logger to the file so prints stay clean for the UI
	log.SetOutput(f)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	// Determine process title preference order:
	// 1) project_name in eldersvr.yaml via internal/config
	// 2) PROC_TITLE env var
	// 3) default "eldersvr"
	var procTitle string
	if cfg, err := config.LoadAndValidateConfig(); err == nil && cfg.ProjectName != "" {
		procTitle = cfg.ProjectName
	} else if t := os.Getenv("PROC_TITLE"); t != "" {
		procTitle = t
	} else {
		procTitle = "eldersvr"
	}
	// Replace whitespace with single '-' (collapse multiple spaces/tabs) to make
	// the process name friendlier and avoid spaces in ps output.
	procTitle = strings.Join(strings.Fields(procTitle), "-")
	// PR_SET_NAME (Linux comm) limited to 16 bytes including NUL, so keep ~15 bytes
	procTitle = truncateToBytes(procTitle, 15)
	gspt.SetProcTitle(procTitle)

	// Capture original terminal state (if stdin is a TTY) so we can restore on forced exit.
	var origState *term.State
	if fi, _ := os.Stdin.Stat(); (fi.Mode() & os.ModeCharDevice) != 0 {
		if st, err := term.GetState(int(os.Stdin.Fd())); err == nil {
			origState = st
		}
	}

	forceExit := func(code int) {
		if origState != nil {
			_ = term.Restore(int(os.Stdin.Fd()), origState)
		}
		os.Exit(code)
	}

	// Context used to issue graceful cancellation to command tree.
	ctx, cancel := context.WithCancel(context.Background())

	// Interrupt handling stays in main so every command inherits it through
	// the context; a provisioning run aborted mid-push must exit 130.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	done := make(chan struct{})
	shutdown := make(chan struct{})

	// Listen for shutdown events from components via EventBus
	events.GlobalBus.Subscribe(events.EventShutdownRequested, func(reason string) {
		log.Printf("shutdown requested from component: %s\n", reason)
		cancel() // signal all routines via context
		close(shutdown)
	})

	// Run the CLI in a goroutine
	wg.Add(1)
	var cmdErr error
	go func() {
		defer wg.Done()
		cmdErr = cmd.ExecuteContext(ctx)
		close(done)
	}()

waitLoop:
	for {
		select {
		case sig := <-sigCh:
			log.Printf("signal received: %v, cancelling command tree\n", sig)
			util.Default.Println("\n⏹ Interrupted")
			cancel()
			select {
			case <-done:
				log.Println("goroutine exited cleanly after interrupt")
			case <-time.After(5 * time.Second):
				log.Println("timeout waiting for goroutine after interrupt, forcing exit")
			}
			forceExit(130)
		case <-shutdown:
			// Component requested shutdown via EventBus
			select {
			case <-done:
				log.Println("goroutine exited cleanly after component shutdown")
				break waitLoop
			case <-time.After(5 * time.Second):
				log.Println("timeout waiting for goroutine after component shutdown, forcing exit")
				forceExit(1)
			}
		case <-done:
			// finished normally before any shutdown request
			log.Println("goroutine finished; exiting.")
			util.Default.ClearLine()
			break waitLoop
		}
	}

	// ensure wg cleaned up (optional)
	wg.Wait()

	// Restore terminal before normal exit if it was changed (best-effort)
	if origState != nil {
		_ = term.Restore(int(os.Stdin.Fd()), origState)
	}

	if cmdErr != nil {
		forceExit(1)
	}
}
