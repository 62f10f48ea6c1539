package source

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/peelkit/matte/internal/fetch"
	"github.com/peelkit/matte/mediactx"
	"github.com/peelkit/matte/pkg/util"
	"github.com/peelkit/matte/probe"
)

// BackgroundKind tags the backdrop variant.
type BackgroundKind int

const (
	BackgroundColor BackgroundKind = iota
	BackgroundImage
	BackgroundVideo
	BackgroundEmpty
)

func (k BackgroundKind) String() string {
	switch k {
	case BackgroundColor:
		return "color"
	case BackgroundImage:
		return "image"
	case BackgroundVideo:
		return "video"
	case BackgroundEmpty:
		return "empty"
	}
	return "unknown"
}

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Background is the canvas backdrop a composition draws layers onto.
// Instances are immutable: Subclip and Audio return copies.
type Background struct {
	Kind   BackgroundKind
	Color  string
	Source string

	Width  int
	Height int
	FPS    float64

	AudioEnabled bool
	AudioVolume  float64

	Trim *Span
	Info *probe.Info
}

// NewColor builds a solid-color backdrop. The color must be a 6-hex-digit
// #RRGGBB string.
func NewColor(hex string, width, height int, fps float64) (*Background, error) {
	if !colorPattern.MatchString(hex) {
		return nil, fmt.Errorf("invalid background color %q: expected #RRGGBB", hex)
	}
	return &Background{
		Kind:        BackgroundColor,
		Color:       hex,
		Width:       width,
		Height:      height,
		FPS:         fps,
		AudioVolume: 1,
	}, nil
}

// NewImage builds a still-image backdrop, dimensions probed at
// construction. Remote images are staged to a local temp file first; the
// staging is purely a read-speed optimization, so a failed download falls
// back to handing ffmpeg the URL directly.
func NewImage(src string) *Background {
	mc := mediactx.Current()

	if util.IsRemote(src) {
		if staged, err := fetch.Download(context.Background(), nil, src, mc.TempDir); err == nil {
			mc.RegisterTemp(staged)
			src = staged
		} else {
			mc.Logger.Debug().Err(err).Str("src", src).Msg("image staging failed, using URL")
		}
	}

	info := probe.Probe(context.Background(), mc, src)
	return &Background{
		Kind:        BackgroundImage,
		Source:      src,
		Width:       info.Width,
		Height:      info.Height,
		FPS:         probe.DefaultFPS,
		AudioVolume: 1,
		Info:        info,
	}
}

// NewVideo builds a video backdrop, metadata probed at construction with
// rotation-aware dimensions. Video backdrops control the composition's
// duration. Audio is enabled by default when the source has a stream.
func NewVideo(src string) *Background {
	mc := mediactx.Current()
	info := probe.Probe(context.Background(), mc, src)

	return &Background{
		Kind:         BackgroundVideo,
		Source:       src,
		Width:        info.Width,
		Height:       info.Height,
		FPS:          info.FPS,
		AudioEnabled: info.HasAudio,
		AudioVolume:  1,
		Info:         info,
	}
}

// NewEmpty builds a fully transparent backdrop with explicit geometry.
func NewEmpty(width, height int, fps float64) *Background {
	return &Background{
		Kind:        BackgroundEmpty,
		Width:       width,
		Height:      height,
		FPS:         fps,
		AudioVolume: 1,
	}
}

// ControlsDuration reports whether this backdrop dictates output duration.
// Only video backdrops do.
func (b *Background) ControlsDuration() bool {
	return b.Kind == BackgroundVideo
}

// Duration returns the backdrop's effective duration (trim-aware) or 0 when
// it has none.
func (b *Background) Duration() float64 {
	if !b.ControlsDuration() {
		return 0
	}
	if b.Trim != nil {
		if d, ok := b.Trim.Duration(); ok {
			return d
		}
		if b.Info != nil && b.Info.Duration > b.Trim.Start {
			return b.Info.Duration - b.Trim.Start
		}
		return 0
	}
	if b.Info != nil {
		return b.Info.Duration
	}
	return 0
}

// Subclip returns a copy trimmed to [start, end]. end <= start means to the
// end of the source. The receiver is unchanged.
func (b *Background) Subclip(start, end float64) *Background {
	c := *b
	c.Trim = &Span{Start: start, End: end}
	return &c
}

// Audio returns a copy with the audio flag and volume applied. Volume is
// clamped to [0, 1]. The receiver is unchanged.
func (b *Background) Audio(enabled bool, volume float64) *Background {
	c := *b
	c.AudioEnabled = enabled
	c.AudioVolume = clampUnit(volume)
	return &c
}

// HasAudio reports whether the backdrop contributes an audio source.
func (b *Background) HasAudio() bool {
	return b.AudioEnabled && b.Info != nil && b.Info.HasAudio
}

// InputArgs emits the backdrop's input-stage ffmpeg arguments for the given
// canvas, ending with the input locator.
func (b *Background) InputArgs(canvasW, canvasH int, canvasFPS float64, mc *mediactx.Context) []string {
	switch b.Kind {
	case BackgroundColor:
		spec := fmt.Sprintf("color=c=0x%s:s=%dx%d:r=%g",
			strings.TrimPrefix(b.Color, "#"), canvasW, canvasH, canvasFPS)
		return []string{"-f", "lavfi", "-i", spec}

	case BackgroundImage:
		return []string{"-loop", "1", "-framerate", fmt.Sprintf("%g", canvasFPS), "-i", b.Source}

	case BackgroundVideo:
		args := trimArgs(b.Trim)
		if b.Info != nil {
			args = append(args, alphaDecoderArgs(b.Info.Codec, mc)...)
		}
		return append(args, "-i", b.Source)

	case BackgroundEmpty:
		fallthrough
	default:
		spec := fmt.Sprintf("color=c=black@0.0:s=%dx%d:r=%g", canvasW, canvasH, canvasFPS)
		return []string{"-f", "lavfi", "-i", spec}
	}
}
