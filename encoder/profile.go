// Package encoder maps output codec/quality settings to ffmpeg argument
// lists. Profiles are pure values: building the same profile twice yields
// identical arguments.
package encoder

import (
	"fmt"
)

// Kind selects the output codec family.
type Kind int

const (
	// H264 is a standard yuv420p MP4 output (no transparency).
	H264 Kind = iota
	// VP9Alpha is a WebM output preserving the alpha channel.
	VP9Alpha
	// ProRes4444 is a MOV output preserving alpha at production quality.
	ProRes4444
	// Stacked is an MP4 carrying color and matte stacked in one frame, for
	// players that reconstruct transparency themselves.
	Stacked
	// GIF is an animated GIF preview output.
	GIF
)

const (
	DefaultCRF    = 23
	DefaultPreset = "medium"
)

// Layout describes how Stacked output arranges color and matte.
type Layout string

const (
	LayoutVertical   Layout = "vertical"
	LayoutHorizontal Layout = "horizontal"
)

// Profile is a stateless argument generator for one output encoding.
type Profile struct {
	Kind   Kind
	CRF    int
	Preset string
	Speed  int
	FPS    float64
	Layout Layout
}

// NewH264 builds the default MP4 profile.
func NewH264(crf int, preset string) Profile {
	if crf <= 0 {
		crf = DefaultCRF
	}
	if preset == "" {
		preset = DefaultPreset
	}
	return Profile{Kind: H264, CRF: crf, Preset: preset}
}

// NewVP9Alpha builds a transparency-preserving WebM profile.
func NewVP9Alpha(crf, speed int) Profile {
	if crf <= 0 {
		crf = 30
	}
	if speed <= 0 {
		speed = 2
	}
	return Profile{Kind: VP9Alpha, CRF: crf, Speed: speed}
}

// NewProRes4444 builds a transparency-preserving MOV profile.
func NewProRes4444() Profile {
	return Profile{Kind: ProRes4444}
}

// NewStacked builds a stacked color-over-matte MP4 profile.
func NewStacked(layout Layout, crf int) Profile {
	if layout == "" {
		layout = LayoutVertical
	}
	if crf <= 0 {
		crf = DefaultCRF
	}
	return Profile{Kind: Stacked, CRF: crf, Preset: DefaultPreset, Layout: layout}
}

// NewGIF builds an animated preview profile at the given frame rate.
func NewGIF(fps float64) Profile {
	if fps <= 0 {
		fps = 12
	}
	return Profile{Kind: GIF, FPS: fps}
}

// Args returns the encoder flags, everything up to but excluding the output
// path token.
func (p Profile) Args() []string {
	switch p.Kind {
	case VP9Alpha:
		return []string{
			"-c:v", "libvpx-vp9",
			"-pix_fmt", "yuva420p",
			"-crf", fmt.Sprintf("%d", p.CRF),
			"-b:v", "0",
			"-speed", fmt.Sprintf("%d", p.Speed),
			"-auto-alt-ref", "0",
			"-c:a", "libopus",
		}
	case ProRes4444:
		return []string{
			"-c:v", "prores_ks",
			"-profile:v", "4444",
			"-pix_fmt", "yuva444p10le",
			"-c:a", "pcm_s16le",
		}
	case GIF:
		return []string{
			"-r", fmt.Sprintf("%g", p.FPS),
			"-f", "gif",
		}
	case Stacked, H264:
		fallthrough
	default:
		args := []string{
			"-c:v", "libx264",
			"-preset", p.presetOr(DefaultPreset),
			"-crf", fmt.Sprintf("%d", p.crfOr(DefaultCRF)),
			"-pix_fmt", "yuv420p",
			"-movflags", "+faststart",
			"-c:a", "aac",
		}
		if p.FPS > 0 {
			args = append(args, "-r", fmt.Sprintf("%g", p.FPS))
		}
		return args
	}
}

func (p Profile) presetOr(def string) string {
	if p.Preset == "" {
		return def
	}
	return p.Preset
}

func (p Profile) crfOr(def int) int {
	if p.CRF <= 0 {
		return def
	}
	return p.CRF
}

// PreservesAlpha reports whether the profile keeps a transparency channel in
// the output container.
func (p Profile) PreservesAlpha() bool {
	return p.Kind == VP9Alpha || p.Kind == ProRes4444
}
