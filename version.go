package persist

import (
	"errors"
	"runtime/debug"
)

// VersionInfo describes the running application build.
type VersionInfo struct {
	ReleaseVersion     string `json:"release_version,omitempty"`
	EnvironmentVersion string `json:"environment_version,omitempty"`
}

// Resolve prefers the release version and falls back to the environment one.
func (v VersionInfo) Resolve() string {
	if v.ReleaseVersion != "" {
		return v.ReleaseVersion
	}
	return v.EnvironmentVersion
}

// VersionProvider reports the running version. It is consulted on every
// persist call.
type VersionProvider interface {
	RunningVersion() (VersionInfo, error)
}

// VersionFunc adapts a function to VersionProvider.
type VersionFunc func() (VersionInfo, error)

// RunningVersion implements VersionProvider.
func (f VersionFunc) RunningVersion() (VersionInfo, error) {
	if f == nil {
		return VersionInfo{}, nil
	}
	return f()
}

// StaticVersion always reports the same version info.
type StaticVersion VersionInfo

// RunningVersion implements VersionProvider.
func (s StaticVersion) RunningVersion() (VersionInfo, error) {
	return VersionInfo(s), nil
}

// Release is shorthand for a StaticVersion with only a release version.
func Release(version string) StaticVersion {
	return StaticVersion{ReleaseVersion: version}
}

var errNoBuildInfo = errors.New("persist: build info unavailable")

// BuildInfoVersion reads the version embedded by the Go toolchain. The main
// module version is the release version; the VCS revision, or "develop" when
// there is none, is the environment version.
type BuildInfoVersion struct{}

// RunningVersion implements VersionProvider.
func (BuildInfoVersion) RunningVersion() (VersionInfo, error) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return VersionInfo{}, errNoBuildInfo
	}
	return versionFromBuildInfo(info), nil
}

func versionFromBuildInfo(info *debug.BuildInfo) VersionInfo {
	out := VersionInfo{EnvironmentVersion: "develop"}
	if info == nil {
		return out
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		out.ReleaseVersion = v
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			out.EnvironmentVersion = setting.Value
		}
	}
	return out
}
