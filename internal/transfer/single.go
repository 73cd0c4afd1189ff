package transfer

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"eldersvr-cli/internal/config"
	"eldersvr-cli/internal/events"
)

// PushSingle pushes one changed local file to a device, applying the same
// role and class rules as a full transfer. Returns false when the file is
// outside the device's subset (wrong role prefix, unrelated directory), which
// is not an error. Storage is resolved lazily once per target.
func (e *Engine) PushSingle(ctx context.Context, target *DeviceTarget, localPath string) (bool, error) {
	class, ok := classifySingle(e.paths, target.Role, localPath)
	if !ok {
		return false, nil
	}

	if !target.resolved {
		if err := e.resolver.Resolve(ctx, target); err != nil {
			return false, err
		}
	}

	remoteDir := classDir(target, class)
	if err := e.bridge.Mkdirs(ctx, target.Serial, remoteDir); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrDirectoryCreateFailed, remoteDir, err)
	}

	name := filepath.Base(localPath)
	if err := e.bridge.Push(ctx, target.Serial, localPath, path.Join(remoteDir, name)); err != nil {
		return false, err
	}
	events.GlobalBus.Publish(events.EventTransferProgress, target.Serial, class, 1, 1)
	return true, nil
}

// classifySingle maps a local path to its asset class for the given role.
// Mirrors BuildFileSet: videos are role-filtered by prefix, the credential
// file goes to masters only, and anything outside the known directories is
// out of scope.
func classifySingle(paths config.Paths, role Role, localPath string) (string, bool) {
	dir := filepath.Dir(localPath)
	name := filepath.Base(localPath)

	switch {
	case sameDir(dir, paths.VideosDir()):
		if !strings.HasSuffix(name, ".mp4") {
			return "", false
		}
		prefix := HighResPrefix
		if role == RoleMaster {
			prefix = LowResPrefix
		}
		if !strings.HasPrefix(name, prefix) {
			return "", false
		}
		return "videos", true
	case sameDir(dir, paths.ImagesDir()):
		if !imageExtensions[strings.ToLower(filepath.Ext(name))] {
			return "", false
		}
		return "images", true
	case sameDir(dir, paths.LocalDownloads):
		if name == filepath.Base(paths.ManifestPath()) {
			return "json", true
		}
		if role == RoleMaster && name == filepath.Base(paths.CredentialPath()) {
			return "json", true
		}
		return "", false
	default:
		return "", false
	}
}

func classDir(target *DeviceTarget, class string) string {
	switch class {
	case "videos":
		return target.Paths.Video
	case "images":
		return target.Paths.Image
	default:
		return target.Paths.Base
	}
}

func sameDir(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return aa == bb
}
