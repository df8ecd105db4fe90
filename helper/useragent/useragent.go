// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

// Package useragent builds the User-Agent header sent on outbound requests.
package useragent

import (
	"fmt"
	"runtime"

	"github.com/muralhq/mural/version"
)

// Header is the canonical request header name.
const Header = "User-Agent"

var (
	// projectURL is the project URL.
	projectURL = "https://github.com/muralhq/mural"

	// rt is the runtime - variable for tests.
	rt = runtime.Version()

	// versionFunc is the func that returns the current version.
	versionFunc = func() string {
		return version.GetVersion().VersionNumber()
	}
)

// String returns the consistent user-agent string for Mural.
func String() string {
	return fmt.Sprintf("Mural/%s (+%s; %s)", versionFunc(), projectURL, rt)
}
