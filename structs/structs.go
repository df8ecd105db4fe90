// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

// Package structs holds the core types shared by the scheduler, the state
// store and the HTTP layer.
package structs

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"regexp"
	"strings"
)

var rgbRe = regexp.MustCompile(`^[0-9a-fA-F]{6}$`)

// RGB is a single canvas pixel color. The wire form is a six digit hex
// string; lowercase is emitted, either case is accepted.
type RGB struct {
	R uint8
	G uint8
	B uint8
}

// ParseRGB parses the six digit hex form of a color.
func ParseRGB(s string) (RGB, error) {
	if !rgbRe.MatchString(s) {
		return RGB{}, fmt.Errorf("%q is not a valid color: expected the hexadecimal form RRGGBB, for example ff00ff", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(strings.ToLower(s), "%02x%02x%02x", &r, &g, &b); err != nil {
		return RGB{}, fmt.Errorf("%q is not a valid color: %v", s, err)
	}
	return RGB{R: r, G: g, B: b}, nil
}

// String returns the canonical lowercase hex form.
func (c RGB) String() string {
	return fmt.Sprintf("%02x%02x%02x", c.R, c.G, c.B)
}

// MarshalJSON implements json.Marshaler.
func (c RGB) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *RGB) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	rgb, err := ParseRGB(s)
	if err != nil {
		return err
	}
	*c = rgb
	return nil
}

// TaskID is the scheduling identity of a task. Two tasks with the same
// coordinates and target color are the same unit of work regardless of
// which project emitted them.
type TaskID struct {
	X   int
	Y   int
	RGB RGB
}

func (id TaskID) String() string {
	return fmt.Sprintf("(%d,%d)#%s", id.X, id.Y, id.RGB)
}

// Task is one pixel that must change from its current canvas color to a
// project's target color. ProjectName is informational and excluded from
// task identity.
type Task struct {
	X           int    `json:"x"`
	Y           int    `json:"y"`
	RGB         RGB    `json:"rgb"`
	ProjectName string `json:"project_name,omitempty"`
}

// ID returns the scheduling identity of the task.
func (t Task) ID() TaskID {
	return TaskID{X: t.X, Y: t.Y, RGB: t.RGB}
}

// Validate checks the submittable fields of a task. Coordinates are only
// bounded below; canvas dimensions are not known until the first snapshot.
func (t *Task) Validate() error {
	if t.X < 0 || t.Y < 0 {
		return fmt.Errorf("task coordinates (%d,%d) must be non-negative", t.X, t.Y)
	}
	return nil
}

// Project identifies a project by name, which is all that is needed to
// delete one.
type Project struct {
	Name string `json:"name"`
}

// ProjectDetails is the full description of a project: a base64-encoded PNG
// anchored at (X, Y), painted in ascending priority order.
type ProjectDetails struct {
	Name     string `json:"name"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Priority int    `json:"priority"`
	Image    string `json:"image"`
}

// Validate checks that the project is well formed and its image is a
// decodable base64 PNG.
func (p *ProjectDetails) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("project name must not be empty")
	}
	raw, err := base64.StdEncoding.DecodeString(p.Image)
	if err != nil {
		return ErrBadImage
	}
	if _, err := png.DecodeConfig(bytes.NewReader(raw)); err != nil {
		return ErrBadImage
	}
	return nil
}

// User identifies a user for moderation requests.
type User struct {
	UserID int64 `json:"user_id"`
}

// UserRecord is a row of the users table.
type UserRecord struct {
	UserID           int64
	UserName         string
	KeySalt          string
	IsMod            bool
	IsBanned         bool
	ProjectsComplete int
}

// Message is a human readable API response.
type Message struct {
	Message string `json:"message"`
}
