package util

import (
	"errors"
	"os"
	"path/filepath"
)

// WorkspaceMarker is the config file whose presence makes a directory an
// EldersVR deployment workspace.
const WorkspaceMarker = "eldersvr.yaml"

// FindWorkspaceRoot walks upward from dir (or the working directory when dir
// is empty) until it finds a directory containing eldersvr.yaml. Commands can
// therefore run from anywhere inside a workspace, mirroring how git locates
// its repository root.
func FindWorkspaceRoot(dir string) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		marker := filepath.Join(abs, WorkspaceMarker)
		if info, err := os.Stat(marker); err == nil && !info.IsDir() {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", errors.New("no eldersvr.yaml found in this directory or any parent")
		}
		abs = parent
	}
}

// ExecutableDir returns the directory containing the running binary, with
// symlinks resolved. Used to locate template.yaml shipped next to the binary.
func ExecutableDir() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exePath); err == nil {
		exePath = resolved
	}
	return filepath.Dir(exePath), nil
}
