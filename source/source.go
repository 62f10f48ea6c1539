// Package source models the two media families a composition draws from:
// the Background canvas (color, image, video, or transparent) and the
// Foreground transparency carriers produced by background removal. Both are
// closed tagged variants; the per-variant ffmpeg wiring lives behind a
// switch on the tag so the whole table stays auditable in one place.
package source

import (
	"github.com/peelkit/matte/mediactx"
	"github.com/peelkit/matte/pkg/util"
)

// Span is a (start, end) source trim in seconds. End <= Start means "to the
// end of the source".
type Span struct {
	Start float64
	End   float64
}

// Duration returns the span length when the span is bounded.
func (s Span) Duration() (float64, bool) {
	if s.End > s.Start {
		return s.End - s.Start, true
	}
	return 0, false
}

func trimArgs(trim *Span) []string {
	if trim == nil {
		return nil
	}
	args := []string{"-ss", util.FormatSeconds(trim.Start)}
	if d, ok := trim.Duration(); ok {
		args = append(args, "-t", util.FormatSeconds(d))
	}
	return args
}

// alphaDecoderArgs returns the decoder hint for codecs whose native ffmpeg
// decoder drops the alpha plane. libvpx keeps it, so force it when present.
func alphaDecoderArgs(codec string, mc *mediactx.Context) []string {
	switch codec {
	case "vp8":
		if mc.HasDecoder("libvpx") {
			return []string{"-c:v", "libvpx"}
		}
	case "vp9":
		if mc.HasDecoder("libvpx-vp9") {
			return []string{"-c:v", "libvpx-vp9"}
		}
	}
	return nil
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
