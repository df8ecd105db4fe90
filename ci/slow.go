// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package ci

import (
	"os"
	"strconv"
	"testing"
)

// SkipSlow skips a slow test unless MURAL_SLOW_TEST is set to a true value.
func SkipSlow(t *testing.T, reason string) {
	value := os.Getenv("MURAL_SLOW_TEST")
	run, err := strconv.ParseBool(value)
	if !run || err != nil {
		t.Skipf("Skipping slow test: %s", reason)
	}
}

// SkipTestWithoutPostgres skips a test unless MURAL_TEST_POSTGRES points at a
// reachable database, and returns the connection string.
func SkipTestWithoutPostgres(t *testing.T) string {
	url := os.Getenv("MURAL_TEST_POSTGRES")
	if url == "" {
		t.Skip("Skipping test: MURAL_TEST_POSTGRES is not set")
	}
	return url
}

// Parallel runs t in parallel, unless CI is set to a true value.
//
// In CI we get better performance by running tests in serial while not
// restricting GOMAXPROCS.
func Parallel(t *testing.T) {
	value := os.Getenv("CI")
	isCI, err := strconv.ParseBool(value)
	if !isCI || err != nil {
		t.Parallel()
	}
}
