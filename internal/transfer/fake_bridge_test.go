package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"eldersvr-cli/internal/config"
)

// fakeBridge is an in-memory DeviceBridge with scriptable failure points.
// Remote state is keyed by "serial:path".
type fakeBridge struct {
	mu sync.Mutex

	down        bool
	devices     []Device
	dirs        map[string]bool
	writable    map[string]bool
	files       map[string]int64
	rootSerials map[string]bool
	mkdirFail   map[string]bool
	pushFail    map[string]bool
	probeErr    map[string]error
	shellOut    map[string]ExecResult

	pushes   []string
	shells   []string
	installs []string
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		dirs:        map[string]bool{},
		writable:    map[string]bool{},
		files:       map[string]int64{},
		rootSerials: map[string]bool{},
		mkdirFail:   map[string]bool{},
		pushFail:    map[string]bool{},
		probeErr:    map[string]error{},
		shellOut:    map[string]ExecResult{},
	}
}

func bkey(serial, p string) string { return serial + ":" + p }

// addDir seeds an existing directory on the device.
func (f *fakeBridge) addDir(serial, p string, isWritable bool) {
	f.dirs[bkey(serial, p)] = true
	f.writable[bkey(serial, p)] = isWritable
}

// addFile seeds an existing remote file with the given size.
func (f *fakeBridge) addFile(serial, p string, size int64) {
	f.files[bkey(serial, p)] = size
}

func (f *fakeBridge) ListDevices(ctx context.Context) ([]Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, ErrBridgeUnavailable
	}
	return f.devices, nil
}

func (f *fakeBridge) TestPath(ctx context.Context, serial, p string, mode PathMode) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return false, ErrBridgeUnavailable
	}
	k := bkey(serial, p)
	if err := f.probeErr[k]; err != nil {
		return false, err
	}
	switch mode {
	case PathIsDir:
		return f.dirs[k], nil
	case PathIsFile:
		_, ok := f.files[k]
		return ok, nil
	case PathWritable:
		return f.writable[k], nil
	default:
		if f.dirs[k] {
			return true, nil
		}
		_, ok := f.files[k]
		return ok, nil
	}
}

func (f *fakeBridge) Mkdirs(ctx context.Context, serial, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return ErrBridgeUnavailable
	}
	k := bkey(serial, p)
	if f.mkdirFail[k] {
		return fmt.Errorf("mkdir %s: permission denied", p)
	}
	f.dirs[k] = true
	// Created directories are writable unless the test preset says otherwise.
	if _, preset := f.writable[k]; !preset {
		f.writable[k] = true
	}
	return nil
}

func (f *fakeBridge) Push(ctx context.Context, serial, localPath, remotePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return ErrBridgeUnavailable
	}
	f.pushes = append(f.pushes, remotePath)
	if f.pushFail[remotePath] {
		return fmt.Errorf("push %s: device I/O error", filepath.Base(remotePath))
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}
	f.files[bkey(serial, remotePath)] = info.Size()
	return nil
}

func (f *fakeBridge) Shell(ctx context.Context, serial string, args ...string) (ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return ExecResult{}, ErrBridgeUnavailable
	}
	cmd := strings.Join(args, " ")
	f.shells = append(f.shells, serial+":"+cmd)
	if res, ok := f.shellOut[cmd]; ok {
		return res, nil
	}

	switch {
	case cmd == "su -c id":
		if f.rootSerials[serial] {
			return ExecResult{Stdout: "uid=0(root) gid=0(root) groups=0(root)"}, nil
		}
		return ExecResult{ExitCode: 1, Stderr: "su: not found"}, nil
	case strings.HasPrefix(cmd, "su -c mkdir -p "):
		if !f.rootSerials[serial] {
			return ExecResult{ExitCode: 1}, nil
		}
		f.dirs[bkey(serial, strings.TrimPrefix(cmd, "su -c mkdir -p "))] = true
		return ExecResult{}, nil
	case strings.HasPrefix(cmd, "su -c chmod 777 "):
		if !f.rootSerials[serial] {
			return ExecResult{ExitCode: 1}, nil
		}
		f.writable[bkey(serial, strings.TrimPrefix(cmd, "su -c chmod 777 "))] = true
		return ExecResult{}, nil
	case len(args) > 0 && args[0] == "stat":
		p := args[len(args)-1]
		if size, ok := f.files[bkey(serial, p)]; ok {
			return ExecResult{Stdout: fmt.Sprintf("%d\n", size)}, nil
		}
		return ExecResult{ExitCode: 1, Stderr: "stat: no such file or directory"}, nil
	}
	return ExecResult{}, nil
}

func (f *fakeBridge) Remove(ctx context.Context, serial, remotePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return ErrBridgeUnavailable
	}
	delete(f.files, bkey(serial, remotePath))
	return nil
}

func (f *fakeBridge) Install(ctx context.Context, serial, apkPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return ErrBridgeUnavailable
	}
	f.installs = append(f.installs, serial+":"+apkPath)
	return nil
}

// pushedPaths returns a copy of the push log.
func (f *fakeBridge) pushedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pushes...)
}

func (f *fakeBridge) shellCount(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.shells {
		if strings.Contains(s, substr) {
			n++
		}
	}
	return n
}

// localContent writes the standard downloaded tree: two films in both
// qualities, two images, a manifest, and a credential file.
func localContent(t *testing.T) config.Paths {
	t.Helper()
	root := t.TempDir()
	paths := config.Paths{
		LocalDownloads: root,
		DevicePath:     config.DefaultDevicePath,
		JSONFilename:   "new_data.json",
	}
	for _, dir := range []string{paths.VideosDir(), paths.ImagesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	files := map[string]string{
		paths.ManifestPath():                                  `{"lastModified":"01/02/2026 10:00:00","films":[],"tags":[]}`,
		paths.CredentialPath():                                `{"accessToken":"tok"}`,
		filepath.Join(paths.VideosDir(), "highres_intro.mp4"): "high intro bytes",
		filepath.Join(paths.VideosDir(), "lowres_intro.mp4"):  "low intro",
		filepath.Join(paths.VideosDir(), "highres_ocean.mp4"): "high ocean bytes",
		filepath.Join(paths.VideosDir(), "lowres_ocean.mp4"):  "low ocean",
		filepath.Join(paths.ImagesDir(), "intro_thumb.jpg"):   "thumb",
		filepath.Join(paths.ImagesDir(), "nature.png"):        "tag image",
	}
	for p, content := range files {
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return paths
}
