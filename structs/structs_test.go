// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package structs

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/muralhq/mural/ci"
	"github.com/shoenig/test/must"
)

func TestParseRGB(t *testing.T) {
	ci.Parallel(t)

	cases := []struct {
		name  string
		input string
		want  RGB
		bad   bool
	}{
		{name: "lowercase", input: "ff00aa", want: RGB{R: 0xff, G: 0x00, B: 0xaa}},
		{name: "uppercase", input: "FF00AA", want: RGB{R: 0xff, G: 0x00, B: 0xaa}},
		{name: "mixed case", input: "DeAdBe", want: RGB{R: 0xde, G: 0xad, B: 0xbe}},
		{name: "black", input: "000000", want: RGB{}},
		{name: "too short", input: "ff00a", bad: true},
		{name: "too long", input: "ff00aab", bad: true},
		{name: "not hex", input: "ff00ag", bad: true},
		{name: "empty", input: "", bad: true},
		{name: "hash prefix", input: "#ff00aa", bad: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRGB(tc.input)
			if tc.bad {
				must.Error(t, err)
				return
			}
			must.NoError(t, err)
			must.Eq(t, tc.want, got)
		})
	}
}

func TestRGB_String(t *testing.T) {
	ci.Parallel(t)

	must.Eq(t, "ff00aa", RGB{R: 0xff, G: 0x00, B: 0xaa}.String())
	must.Eq(t, "000000", RGB{}.String())
	must.Eq(t, "0a0b0c", RGB{R: 0x0a, G: 0x0b, B: 0x0c}.String())
}

func TestRGB_JSON(t *testing.T) {
	ci.Parallel(t)

	out, err := json.Marshal(RGB{R: 0x00, G: 0xff, B: 0x07})
	must.NoError(t, err)
	must.Eq(t, `"00ff07"`, string(out))

	var c RGB
	must.NoError(t, json.Unmarshal([]byte(`"A1B2C3"`), &c))
	must.Eq(t, RGB{R: 0xa1, G: 0xb2, B: 0xc3}, c)

	must.Error(t, json.Unmarshal([]byte(`"nothex"`), &c))
	must.Error(t, json.Unmarshal([]byte(`12`), &c))
}

func TestTask_ID(t *testing.T) {
	ci.Parallel(t)

	a := Task{X: 3, Y: 9, RGB: RGB{R: 1}, ProjectName: "alpha"}
	b := Task{X: 3, Y: 9, RGB: RGB{R: 1}, ProjectName: "beta"}
	must.Eq(t, a.ID(), b.ID())

	// TaskID must be usable as a map key.
	seen := map[TaskID]bool{a.ID(): true}
	must.True(t, seen[b.ID()])

	c := Task{X: 3, Y: 9, RGB: RGB{R: 2}}
	must.NotEq(t, a.ID(), c.ID())
}

func TestTask_Validate(t *testing.T) {
	ci.Parallel(t)

	good := Task{X: 0, Y: 120, RGB: RGB{R: 0xff}}
	must.NoError(t, good.Validate())

	bad := Task{X: -1, Y: 4}
	must.Error(t, bad.Validate())
}

// pngBase64 encodes a w x h image filled with a single color.
func pngBase64(t *testing.T, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	must.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestProjectDetails_Validate(t *testing.T) {
	ci.Parallel(t)

	p := ProjectDetails{
		Name:     "mural",
		X:        10,
		Y:        20,
		Priority: 1,
		Image:    pngBase64(t, 2, 2, color.NRGBA{R: 0xff, A: 0xff}),
	}
	must.NoError(t, p.Validate())

	missing := p
	missing.Name = ""
	must.Error(t, missing.Validate())

	garbage := p
	garbage.Image = "!!! not base64 !!!"
	must.ErrorIs(t, garbage.Validate(), ErrBadImage)

	notPNG := p
	notPNG.Image = base64.StdEncoding.EncodeToString([]byte("plain text"))
	must.ErrorIs(t, notPNG.Validate(), ErrBadImage)
}

func TestIsSchedulingConflict(t *testing.T) {
	ci.Parallel(t)

	for _, err := range []error{
		ErrTaskAlreadyAssigned,
		ErrNoTasksAvailable,
		ErrUnknownTask,
		ErrNotYourTask,
		ErrTaskUnverified,
		ErrVerifyTimeout,
	} {
		must.True(t, IsSchedulingConflict(err))
	}
	must.False(t, IsSchedulingConflict(ErrBadImage))
	must.False(t, IsSchedulingConflict(nil))
}

func TestIsAuthErr(t *testing.T) {
	ci.Parallel(t)

	for _, err := range []error{
		ErrNoToken,
		ErrBadHeader,
		ErrInvalidToken,
		ErrUserBanned,
		ErrNotModerator,
	} {
		must.True(t, IsAuthErr(err))
	}
	must.False(t, IsAuthErr(ErrUnknownTask))
	must.False(t, IsAuthErr(nil))
}
