package appmeta

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// AppVersion is overridden at build time with
// -ldflags "-X extgov/core/appmeta.AppVersion=1.2.3".
var AppVersion = "dev"

type BuildInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Revision  string `json:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
}

var (
	buildOnce sync.Once
	build     BuildInfo
)

func Build() BuildInfo {
	buildOnce.Do(func() {
		build = BuildInfo{Version: AppVersion, GoVersion: runtime.Version()}
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				build.Revision = s.Value
			case "vcs.modified":
				build.Modified = s.Value == "true"
			}
		}
	})
	return build
}
