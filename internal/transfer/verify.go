package transfer

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// VerifyReport holds what a post-transfer inspection found on the device.
// Space figures come from du/df and stay human-readable; "unknown" means the
// probe itself failed.
type VerifyReport struct {
	Serial       string
	ManifestOK   bool
	CredentialOK bool
	VideoCount   int
	ImageCount   int
	UsedSpace    string
	FreeSpace    string
}

type Verifier struct {
	bridge   DeviceBridge
	jsonName string
}

func NewVerifier(bridge DeviceBridge, jsonName string) *Verifier {
	return &Verifier{bridge: bridge, jsonName: jsonName}
}

// Verify inspects the device after a transfer. Individual probe failures
// degrade the report instead of aborting; only a dead bridge is an error.
func (v *Verifier) Verify(ctx context.Context, target *DeviceTarget) (*VerifyReport, error) {
	report := &VerifyReport{Serial: target.Serial, UsedSpace: "unknown", FreeSpace: "unknown"}

	ok, err := v.bridge.TestPath(ctx, target.Serial, path.Join(target.Paths.Base, v.jsonName), PathIsFile)
	if err != nil {
		return nil, err
	}
	report.ManifestOK = ok

	if target.Role == RoleMaster {
		ok, err := v.bridge.TestPath(ctx, target.Serial, path.Join(target.Paths.Base, "credential.json"), PathIsFile)
		if err != nil {
			return nil, err
		}
		report.CredentialOK = ok
	}

	count, err := v.countFiles(ctx, target.Serial, target.Paths.Video, "-name '*.mp4'")
	if err != nil {
		return nil, err
	}
	report.VideoCount = count

	count, err = v.countFiles(ctx, target.Serial, target.Paths.Image, "-type f")
	if err != nil {
		return nil, err
	}
	report.ImageCount = count

	v.storageInfo(ctx, target.Serial, target.Paths.Base, report)
	return report, nil
}

// countFiles runs find piped into wc on the device. The whole pipeline goes
// over as one shell string so the pipe runs device-side.
func (v *Verifier) countFiles(ctx context.Context, serial, dir, predicate string) (int, error) {
	res, err := v.bridge.Shell(ctx, serial, fmt.Sprintf("find %s %s 2>/dev/null | wc -l", dir, predicate))
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if convErr != nil {
		return 0, nil
	}
	return n, nil
}

func (v *Verifier) storageInfo(ctx context.Context, serial, base string, report *VerifyReport) {
	if res, err := v.bridge.Shell(ctx, serial, "du", "-sh", base); err == nil && res.ExitCode == 0 {
		if fields := strings.Fields(res.Stdout); len(fields) > 0 {
			report.UsedSpace = fields[0]
		}
	}
	if res, err := v.bridge.Shell(ctx, serial, "df", "-h", base); err == nil && res.ExitCode == 0 {
		lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
		if len(lines) >= 2 {
			if fields := strings.Fields(lines[len(lines)-1]); len(fields) >= 4 {
				report.FreeSpace = fields[3]
			}
		}
	}
}
