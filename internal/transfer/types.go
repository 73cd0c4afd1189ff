package transfer

import (
	"path"

	"eldersvr-cli/internal/progress"
)

// Role determines which video quality subset a device receives.
type Role string

const (
	RoleMaster Role = "master"
	RoleSlave  Role = "slave"
)

// DevicePaths is the working directory set on one device. The base is taken
// from config; the storage resolver may swap the whole set to a fallback.
type DevicePaths struct {
	Base  string
	Video string
	Image string
}

func NewDevicePaths(base string) DevicePaths {
	return DevicePaths{
		Base:  base,
		Video: path.Join(base, "Video"),
		Image: path.Join(base, "Image"),
	}
}

// DeviceTarget is one device in a transfer session. Paths are set once by the
// storage resolver and then fixed for the session.
type DeviceTarget struct {
	Serial string
	Role   Role
	Model  string
	Paths  DevicePaths

	resolved bool
}

func NewDeviceTarget(serial string, role Role, basePath string) *DeviceTarget {
	return &DeviceTarget{
		Serial: serial,
		Role:   role,
		Paths:  NewDevicePaths(basePath),
	}
}

// ScopeFlags narrows a transfer to a subset of asset classes.
type ScopeFlags struct {
	VideosOnly bool
	JSONOnly   bool
}

// ClassResult is the outcome of one asset class (json, videos, images) on one
// device.
type ClassResult struct {
	Status  progress.Status
	Pushed  int
	Failed  int
	Skipped int // user-skipped via conflict resolution
	Total   int // files in scope, excluding user-skipped
}

// Result is the per-device transfer outcome. A fatal error (no writable
// path, directory creation, cancel) lands in Err with every class failed;
// per-file push failures only show up in the class tallies.
type Result struct {
	Serial string
	Role   Role
	JSON   ClassResult
	Videos ClassResult
	Images ClassResult
	Err    error
}

func newResult(target *DeviceTarget) *Result {
	return &Result{
		Serial: target.Serial,
		Role:   target.Role,
		JSON:   ClassResult{Status: progress.StatusPending},
		Videos: ClassResult{Status: progress.StatusPending},
		Images: ClassResult{Status: progress.StatusPending},
	}
}

// failAll marks every class failed. Used for fatal per-device errors.
func (r *Result) failAll(err error) *Result {
	r.Err = err
	r.JSON.Status = progress.StatusFailed
	r.Videos.Status = progress.StatusFailed
	r.Images.Status = progress.StatusFailed
	return r
}

// Success reports whether the device ended with no fatal error and no failed
// class.
func (r *Result) Success() bool {
	if r.Err != nil {
		return false
	}
	for _, c := range []ClassResult{r.JSON, r.Videos, r.Images} {
		if c.Status == progress.StatusFailed {
			return false
		}
	}
	return true
}

// FilesPushed sums successful pushes across classes.
func (r *Result) FilesPushed() int {
	return r.JSON.Pushed + r.Videos.Pushed + r.Images.Pushed
}

// FilesFailed sums per-file failures across classes.
func (r *Result) FilesFailed() int {
	return r.JSON.Failed + r.Videos.Failed + r.Images.Failed
}
