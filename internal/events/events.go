package events

import "github.com/asaskevich/EventBus"

// GlobalBus is the shared event bus for the entire application
var GlobalBus EventBus.Bus

func init() {
	GlobalBus = EventBus.New()
}

// Event types for application-wide coordination
const (
	// Shutdown events
	EventShutdownRequested = "app:shutdown:requested"
	EventShutdownComplete  = "app:shutdown:complete"

	// Download engine events
	EventDownloadStarted  = "download:started"
	EventDownloadProgress = "download:file:progress"
	EventDownloadFileDone = "download:file:done"
	EventDownloadFinished = "download:finished"

	// Device transfer events
	EventTransferStarted  = "transfer:device:started"
	EventTransferProgress = "transfer:file:pushed"
	EventTransferFinished = "transfer:device:finished"

	// Deploy pipeline events
	EventPipelineStep = "pipeline:step"

	// Watch mode events
	EventWatcherStarted = "watcher:started"
	EventWatcherStopped = "watcher:stopped"
)
