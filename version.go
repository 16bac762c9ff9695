// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package z2folio

import "runtime"

// Build identity, overridable at link time:
//
//	go build -ldflags "-X github.com/molecula/z2folio.Version=v1.2.3"
var (
	Version   = "v0.0.0"
	Commit    string
	BuildTime string
	GoVersion = runtime.Version()
)

// ImplementationID and ImplementationName identify the gateway in
// protocol init responses.
const (
	ImplementationID   = "81"
	ImplementationName = "z2folio gateway"
)

// VersionInfo returns a single-line description of this build.
func VersionInfo() string {
	s := ImplementationName + " " + Version
	switch {
	case Commit != "" && BuildTime != "":
		s += " (" + BuildTime + ", " + Commit + ")"
	case Commit != "":
		s += " (" + Commit + ")"
	case BuildTime != "":
		s += " (" + BuildTime + ")"
	}
	return s + " " + GoVersion
}
