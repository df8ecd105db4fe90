// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/muralhq/mural/ci"
	"github.com/muralhq/mural/helper/testlog"
	"github.com/muralhq/mural/structs"
	"github.com/shoenig/test/must"
)

// testCanvasServer fakes the remote pixel API: a 4x2 canvas with one red
// pixel at (1, 0), bearer auth, and rate headers on the pixel endpoint.
func testCanvasServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()

	pixelCalls := 0
	blob := make([]byte, 4*2*3)
	blob[3] = 0xff // (1, 0) red

	mux := http.NewServeMux()
	mux.HandleFunc("/get_size", func(w http.ResponseWriter, r *http.Request) {
		must.Eq(t, "Bearer hunter2", r.Header.Get("Authorization"))
		must.NoError(t, json.NewEncoder(w).Encode(map[string]int{"width": 4, "height": 2}))
	})
	mux.HandleFunc("/get_pixels", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, err := w.Write(blob)
		must.NoError(t, err)
	})
	mux.HandleFunc("/get_pixel", func(w http.ResponseWriter, r *http.Request) {
		pixelCalls++
		w.Header().Set(headerRemaining, "0")
		w.Header().Set(headerReset, "4")
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		x, y := r.URL.Query().Get("x"), r.URL.Query().Get("y")
		rgb := "000000"
		if x == "1" && y == "0" {
			rgb = "ff0000"
		}
		must.NoError(t, json.NewEncoder(w).Encode(map[string]any{"x": x, "y": y, "rgb": rgb}))
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, &pixelCalls
}

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(&Config{
		BaseURL: baseURL,
		Token:   "hunter2",
		Logger:  testlog.HCLogger(t),
	})
	must.NoError(t, err)
	return c
}

func TestNewClient_BadURL(t *testing.T) {
	ci.Parallel(t)

	_, err := NewClient(&Config{BaseURL: "not a url", Token: "x"})
	must.Error(t, err)

	_, err = NewClient(&Config{BaseURL: "/relative/only", Token: "x"})
	must.Error(t, err)
}

func TestClient_GetSize(t *testing.T) {
	ci.Parallel(t)

	ts, _ := testCanvasServer(t)
	c := testClient(t, ts.URL)

	w, h, err := c.GetSize(context.Background())
	must.NoError(t, err)
	must.Eq(t, 4, w)
	must.Eq(t, 2, h)
}

func TestClient_GetCanvas(t *testing.T) {
	ci.Parallel(t)

	ts, _ := testCanvasServer(t)
	c := testClient(t, ts.URL)

	snap, err := c.GetCanvas(context.Background())
	must.NoError(t, err)
	must.Eq(t, 4, snap.Width)
	must.Eq(t, 2, snap.Height)
	must.Eq(t, structs.RGB{R: 0xff}, snap.At(1, 0))
	must.Eq(t, structs.RGB{}, snap.At(0, 0))
	must.True(t, snap.InBounds(3, 1))
	must.False(t, snap.InBounds(4, 0))
	must.False(t, snap.InBounds(0, -1))
}

func TestClient_GetPixel(t *testing.T) {
	ci.Parallel(t)

	ts, calls := testCanvasServer(t)
	c := testClient(t, ts.URL)

	rgb, err := c.GetPixel(context.Background(), 1, 0)
	must.NoError(t, err)
	must.Eq(t, structs.RGB{R: 0xff}, rgb)
	must.Eq(t, 1, *calls)

	// the advertised window is now exhausted
	must.Positive(t, c.PixelWaitTime())
}

func TestClient_HeadPixel(t *testing.T) {
	ci.Parallel(t)

	ts, calls := testCanvasServer(t)
	c := testClient(t, ts.URL)

	// before any observation the wait is zero
	must.Zero(t, c.PixelWaitTime())

	must.NoError(t, c.HeadPixel(context.Background(), 1, 0))
	must.Eq(t, 1, *calls)
	must.Positive(t, c.PixelWaitTime())
	must.LessEq(t, 4*time.Second, c.PixelWaitTime())
}

func TestClient_UpstreamFailure(t *testing.T) {
	ci.Parallel(t)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)
	c := testClient(t, ts.URL)

	_, err := c.GetCanvas(context.Background())
	must.ErrorIs(t, err, structs.ErrCanvasUnavailable)

	_, err = c.GetPixel(context.Background(), 0, 0)
	must.ErrorIs(t, err, structs.ErrCanvasUnavailable)
}

func TestClient_RateLimited(t *testing.T) {
	ci.Parallel(t)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerCooldown, "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(ts.Close)
	c := testClient(t, ts.URL)

	_, err := c.GetPixel(context.Background(), 0, 0)
	must.ErrorIs(t, err, structs.ErrCanvasUnavailable)
	must.Positive(t, c.PixelWaitTime())
}

func TestClient_BlobMismatch(t *testing.T) {
	ci.Parallel(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/get_size", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"width": 10, "height": 10}`)
	})
	mux.HandleFunc("/get_pixels", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 17)) // not 10*10*3
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	c := testClient(t, ts.URL)

	_, err := c.GetCanvas(context.Background())
	must.ErrorIs(t, err, structs.ErrCanvasUnavailable)
	must.StrContains(t, err.Error(), "expected 300")
}

func TestDecodeBlob(t *testing.T) {
	ci.Parallel(t)

	blob := []byte{
		0x11, 0x22, 0x33, 0x44, 0x55, 0x66,
		0x77, 0x88, 0x99, 0xaa, 0xbb, 0xcc,
	}
	snap, err := decodeBlob(2, 2, blob)
	must.NoError(t, err)
	must.Eq(t, structs.RGB{R: 0x11, G: 0x22, B: 0x33}, snap.At(0, 0))
	must.Eq(t, structs.RGB{R: 0x44, G: 0x55, B: 0x66}, snap.At(1, 0))
	must.Eq(t, structs.RGB{R: 0x77, G: 0x88, B: 0x99}, snap.At(0, 1))
	must.Eq(t, structs.RGB{R: 0xaa, G: 0xbb, B: 0xcc}, snap.At(1, 1))

	_, err = decodeBlob(2, 2, blob[:11])
	must.Error(t, err)
}
