// Package metrics describes device viewport state consumed by style
// producers and notifies subscribers when it changes.
package metrics

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Orientation of the window.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// OrientationOf returns landscape when window is wider than tall.
func OrientationOf(width, height float64) Orientation {
	if width > height {
		return Landscape
	}
	return Portrait
}

// Platform the application runs on.
type Platform string

const (
	Android Platform = "android"
	IOS     Platform = "ios"
)

// ParsePlatform accepts platform names case insensitively.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(s))); p {
	case Android, IOS:
		return p, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Status bar heights on iOS devices.
const (
	IOSStatusBarHeight        = 20
	IOSNotchedStatusBarHeight = 44
)

// StatusBarHeight returns status bar height for the platform. Android
// reports its own height, iOS height depends on notch and orientation.
func StatusBarHeight(p Platform, notched bool, o Orientation, reported float64) float64 {
	if p != IOS {
		return reported
	}
	if notched && o == Portrait {
		return IOSNotchedStatusBarHeight
	}
	return IOSStatusBarHeight
}

// Size is width and height pair.
type Size struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Snapshot is viewport state at some point in time.
type Snapshot struct {
	Width           float64     `yaml:"width"`
	Height          float64     `yaml:"height"`
	ScreenWidth     float64     `yaml:"screenWidth"`
	ScreenHeight    float64     `yaml:"screenHeight"`
	StatusBarHeight float64     `yaml:"statusBarHeight"`
	Orientation     Orientation `yaml:"orientation"`
}

// Map returns snapshot as property bag for style producers.
func (s Snapshot) Map() map[string]any {
	return map[string]any{
		"width":           s.Width,
		"height":          s.Height,
		"screenWidth":     s.ScreenWidth,
		"screenHeight":    s.ScreenHeight,
		"statusBarHeight": s.StatusBarHeight,
		"orientation":     string(s.Orientation),
	}
}

// Provider supplies current metrics and change notifications. Subscribers
// receive no payload and are expected to re-read Current.
type Provider interface {
	Current() Snapshot
	Subscribe(fn func()) (cancel func())
}

// Device is in-process Provider updated by the embedding application.
type Device struct {
	mu       sync.Mutex
	platform Platform
	notched  bool
	reported float64
	current  Snapshot
	nextSub  int
	subs     []subscriber
}

type subscriber struct {
	id int
	fn func()
}

// DeviceConfig describes device at creation time.
type DeviceConfig struct {
	Platform Platform
	Notched  bool
	// StatusBar is height reported by the platform, used on Android.
	StatusBar float64
	Window    Size
	Screen    Size
}

// NewDevice creates provider with initial state.
func NewDevice(cfg DeviceConfig) *Device {
	d := &Device{platform: cfg.Platform, notched: cfg.Notched, reported: cfg.StatusBar}
	d.current = d.snapshot(cfg.Window, cfg.Screen)
	return d
}

func (d *Device) snapshot(window, screen Size) Snapshot {
	o := OrientationOf(window.Width, window.Height)
	return Snapshot{
		Width:           window.Width,
		Height:          window.Height,
		ScreenWidth:     screen.Width,
		ScreenHeight:    screen.Height,
		StatusBarHeight: StatusBarHeight(d.platform, d.notched, o, d.reported),
		Orientation:     o,
	}
}

// Current implements Provider.
func (d *Device) Current() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Subscribe implements Provider. Returned cancel function is idempotent.
func (d *Device) Subscribe(fn func()) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextSub++
	id := d.nextSub
	d.subs = append(d.subs, subscriber{id: id, fn: fn})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.subs = slices.DeleteFunc(d.subs, func(s subscriber) bool { return s.id == id })
	}
}

// Update sets new window and screen sizes and synchronously notifies
// subscribers in subscription order. Nothing is sent when state did not
// change.
func (d *Device) Update(window, screen Size) {
	d.mu.Lock()
	next := d.snapshot(window, screen)
	if next == d.current {
		d.mu.Unlock()
		return
	}
	d.current = next
	subs := slices.Clone(d.subs)
	d.mu.Unlock()

	for _, s := range subs {
		s.fn()
	}
}

// Static is Provider which never changes.
type Static Snapshot

// Current implements Provider.
func (s Static) Current() Snapshot { return Snapshot(s) }

// Subscribe implements Provider, there is nothing to notify about.
func (s Static) Subscribe(func()) func() { return func() {} }
