package assets

import goruntime "runtime"

// Architecture returns the platform tag used to pick the native overlay.
// The names follow the ABI directories native libraries are shipped under.
func Architecture() string {
	return architectureFor(goruntime.GOARCH)
}

func architectureFor(goarch string) string {
	switch goarch {
	case "arm":
		return "armeabi-v7a"
	case "arm64":
		return "arm64-v8a"
	case "386":
		return "x86"
	case "amd64":
		return "x86_64"
	default:
		return goarch
	}
}
