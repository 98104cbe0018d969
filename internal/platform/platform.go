// Package platform probes the host environment. The engine selector uses
// the probe to exclude platform combinations where the in-process detector
// backend is known to misbehave. The probe is best effort: any failure
// biases selection toward the worker path instead of crashing.
package platform

import (
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// Info describes the host operating system and architecture.
type Info struct {
	OS        string
	Arch      string
	OSVersion string
}

// excludedOSMajor is the first OS major version on which the native
// detector path is considered unreliable on darwin/arm64 hosts.
const excludedOSMajor = 13

// Probe collects OS family, architecture and OS version. The returned
// Info is usable even when the version query fails; the error tells the
// caller the version field is not trustworthy.
func Probe() (Info, error) {
	info := Info{OS: runtime.GOOS, Arch: runtime.GOARCH}
	version, err := osVersion()
	if err != nil {
		return info, err
	}
	info.OSVersion = strings.TrimSpace(version)
	return info, nil
}

func osVersion() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		out, err := exec.Command("sw_vers", "-productVersion").Output()
		return string(out), err
	default:
		out, err := exec.Command("uname", "-r").Output()
		return string(out), err
	}
}

// MajorVersion parses the leading integer of the dotted OS version.
func (i Info) MajorVersion() (int, error) {
	version, _, _ := strings.Cut(i.OSVersion, ".")
	version, _, _ = strings.Cut(version, "-")
	return strconv.Atoi(strings.TrimSpace(version))
}

// Excluded reports whether the probed environment must not use the native
// detector path. A failed probe counts as excluded.
func Excluded(info Info, probeErr error) bool {
	if probeErr != nil {
		return true
	}
	if info.OS != "darwin" || info.Arch != "arm64" {
		return false
	}
	major, err := info.MajorVersion()
	if err != nil {
		return true
	}
	return major >= excludedOSMajor
}
