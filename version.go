package main

import "runtime/debug"

const (
	SERVER_NAME    = "sitepack"
	SERVER_VERSION = "0.3.0"
)

// Set at link stage via `-ldflags "-X main.GIT_COMMIT=$(git rev-parse --short HEAD)"`
var GIT_COMMIT string

// SERVER_SIGNATURE is the dev server's Server header and the --version output.
var SERVER_SIGNATURE = SERVER_NAME + "/" + SERVER_VERSION + " (" + commit() + ")"

func commit() string {
	if GIT_COMMIT != "" {
		return GIT_COMMIT
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
				return setting.Value[:7]
			}
		}
	}
	return "unknown"
}
