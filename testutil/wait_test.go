// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWait_WaitForResult(t *testing.T) {
	calls := 0
	WaitForResult(func() (bool, error) {
		calls++
		return calls >= 3, errors.New("not yet")
	}, func(err error) {
		t.Fatalf("err: %v", err)
	})
	require.Equal(t, 3, calls)
}

func TestWait_WaitForResultRetries_Exhausted(t *testing.T) {
	var got error
	WaitForResultRetries(2, func() (bool, error) {
		return false, errors.New("never")
	}, func(err error) {
		got = err
	})
	require.EqualError(t, got, "never")
}

func TestWait_WaitForResultUntil(t *testing.T) {
	start := time.Now()
	deadline := start.Add(100 * time.Millisecond)
	WaitForResultUntil(time.Second, func() (bool, error) {
		return time.Now().After(deadline), errors.New("too early")
	}, func(err error) {
		t.Fatalf("err: %v", err)
	})
	require.True(t, time.Since(start) >= 100*time.Millisecond)
}

func TestWait_AssertUntil(t *testing.T) {
	// holds throughout the window
	AssertUntil(50*time.Millisecond, func() (bool, error) {
		return true, nil
	}, func(err error) {
		t.Fatalf("err: %v", err)
	})

	// reports the first failure
	var got error
	AssertUntil(50*time.Millisecond, func() (bool, error) {
		return false, errors.New("broke")
	}, func(err error) {
		got = err
	})
	require.EqualError(t, got, "broke")
}
