package source

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/peelkit/matte/graph"
	"github.com/peelkit/matte/internal/fetch"
	"github.com/peelkit/matte/mediactx"
	"github.com/peelkit/matte/pkg/util"
	"github.com/peelkit/matte/probe"
)

// Format tags the on-disk encoding of a transparency-carrying clip.
type Format int

const (
	// FormatAlphaWebM is a VP8/VP9 WebM with a native alpha channel.
	FormatAlphaWebM Format = iota
	// FormatAlphaMov is a ProRes 4444 style MOV with a native alpha channel.
	FormatAlphaMov
	// FormatPair is a color clip plus a separate grayscale matte clip.
	FormatPair
	// FormatStacked is a single clip whose frames stack color over matte.
	FormatStacked
)

func (f Format) String() string {
	switch f {
	case FormatAlphaWebM:
		return "alpha-webm"
	case FormatAlphaMov:
		return "alpha-mov"
	case FormatPair:
		return "pair"
	case FormatStacked:
		return "stacked"
	}
	return "unknown"
}

// Required and optional member names inside a pair bundle archive.
const (
	ArchiveColorName = "color.mp4"
	ArchiveAlphaName = "alpha.mp4"
	ArchiveAudioName = "audio.mp3"
)

// The binary matte rule: mask luminance >= 128 becomes fully opaque,
// anything below fully transparent.
const thresholdExpr = "lum='if(gte(lum(X,Y),128),255,0)'"

// Foreground is one alpha-carrying clip in one of four encodings.
// Instances are immutable: Subclip and SoftAlpha return copies, so a single
// Foreground can safely back multiple layers.
type Foreground struct {
	Format      Format
	Source      string
	MaskSource  string
	AudioSource string
	SoftMask    bool
	Trim        *Span
	Info        *probe.Info
}

// NewAlphaWebM wraps a WebM clip with a native alpha channel.
func NewAlphaWebM(src string) *Foreground {
	return newProbed(FormatAlphaWebM, src, "", "")
}

// NewAlphaMov wraps a MOV clip with a native alpha channel.
func NewAlphaMov(src string) *Foreground {
	return newProbed(FormatAlphaMov, src, "", "")
}

// NewStacked wraps a clip whose frames carry color in the top half and the
// matte in the bottom half.
func NewStacked(src string) *Foreground {
	return newProbed(FormatStacked, src, "", "")
}

// NewPair wraps a color clip plus its separate matte clip and an optional
// separate audio track. The matte locator is required.
func NewPair(colorSrc, maskSrc, audioSrc string) (*Foreground, error) {
	if maskSrc == "" {
		return nil, fmt.Errorf("pair foreground requires a mask source")
	}
	f := newProbed(FormatPair, colorSrc, maskSrc, audioSrc)
	return f, nil
}

func newProbed(format Format, src, mask, audio string) *Foreground {
	mc := mediactx.Current()
	return &Foreground{
		Format:      format,
		Source:      src,
		MaskSource:  mask,
		AudioSource: audio,
		Info:        probe.Probe(context.Background(), mc, src),
	}
}

// FromFile infers the encoding from the file extension: .webm and .mov map
// to the native-alpha formats, .zip is treated as a pair bundle, and any
// other recognized media extension is read as stacked.
func FromFile(path string) (*Foreground, error) {
	switch ext := util.Extension(path); ext {
	case "webm":
		return NewAlphaWebM(path), nil
	case "mov":
		return NewAlphaMov(path), nil
	case "zip":
		return FromArchive(path)
	case "mp4", "m4v", "mkv", "avi":
		return NewStacked(path), nil
	default:
		return nil, fmt.Errorf("unsupported foreground extension %q (supported: .webm, .mov, .zip, .mp4, .m4v, .mkv, .avi)", ext)
	}
}

// FromArchive extracts a pair bundle (color.mp4 + alpha.mp4, optional
// audio.mp3) into a fresh temp directory. Missing either required member is
// an error.
func FromArchive(archivePath string) (*Foreground, error) {
	mc := mediactx.Current()

	destDir := mc.TempPath("bundle-*")
	if _, err := fetch.Unzip(archivePath, destDir); err != nil {
		return nil, err
	}

	colorPath := filepath.Join(destDir, ArchiveColorName)
	alphaPath := filepath.Join(destDir, ArchiveAlphaName)
	audioPath := filepath.Join(destDir, ArchiveAudioName)

	if !util.FileExists(colorPath) {
		return nil, fmt.Errorf("archive %s is missing required member %s", archivePath, ArchiveColorName)
	}
	if !util.FileExists(alphaPath) {
		return nil, fmt.Errorf("archive %s is missing required member %s", archivePath, ArchiveAlphaName)
	}
	if !util.FileExists(audioPath) {
		audioPath = ""
	}

	return NewPair(colorPath, alphaPath, audioPath)
}

// Subclip returns a copy trimmed to [start, end]; end <= start means to the
// end of the source. Repeated subclips replace the trim rather than
// composing with it, and the receiver is never mutated.
func (f *Foreground) Subclip(start, end float64) *Foreground {
	c := *f
	c.Trim = &Span{Start: start, End: end}
	return &c
}

// SoftAlpha returns a copy with the soft-mask flag set. Only meaningful for
// the pair format: soft mattes use the grayscale mask directly as alpha
// instead of thresholding it to binary.
func (f *Foreground) SoftAlpha(soft bool) *Foreground {
	c := *f
	c.SoftMask = soft
	return &c
}

// EffectiveDuration is the clip duration after trimming, or 0 when the
// source could not be probed.
func (f *Foreground) EffectiveDuration() float64 {
	if f.Trim != nil {
		if d, ok := f.Trim.Duration(); ok {
			return d
		}
		if f.Info != nil && f.Info.Duration > f.Trim.Start {
			return f.Info.Duration - f.Trim.Start
		}
		return 0
	}
	if f.Info != nil {
		return f.Info.Duration
	}
	return 0
}

// Input is one named input-stage argument group. Name keys the input-index
// map the composition engine builds while emitting inputs.
type Input struct {
	Name string
	Args []string
}

// Inputs emits the format-specific input groups for this clip, names
// prefixed with the owning layer's identity (e.g. "layer_0").
func (f *Foreground) Inputs(prefix string, mc *mediactx.Context) []Input {
	trim := trimArgs(f.Trim)

	switch f.Format {
	case FormatAlphaWebM:
		args := append([]string{}, trim...)
		if f.Info != nil {
			args = append(args, alphaDecoderArgs(f.Info.Codec, mc)...)
		}
		args = append(args, "-i", f.Source)
		return []Input{{Name: prefix, Args: args}}

	case FormatAlphaMov:
		return []Input{{Name: prefix, Args: append(append([]string{}, trim...), "-i", f.Source)}}

	case FormatPair:
		inputs := []Input{
			{Name: prefix + "_rgb", Args: append(append([]string{}, trim...), "-i", f.Source)},
			{Name: prefix + "_mask", Args: append(append([]string{}, trim...), "-i", f.MaskSource)},
		}
		if f.AudioSource != "" {
			inputs = append(inputs, Input{Name: prefix + "_audio", Args: append(append([]string{}, trim...), "-i", f.AudioSource)})
		}
		return inputs

	case FormatStacked:
		fallthrough
	default:
		return []Input{{Name: prefix + "_stacked", Args: append(append([]string{}, trim...), "-i", f.Source)}}
	}
}

// AudioInput returns the named input that supplies this clip's audio track,
// or false when the clip has none.
func (f *Foreground) AudioInput(prefix string) (string, bool) {
	if f.AudioSource != "" {
		return prefix + "_audio", true
	}
	if f.Info == nil || !f.Info.HasAudio {
		return "", false
	}
	switch f.Format {
	case FormatPair:
		return prefix + "_rgb", true
	case FormatStacked:
		return prefix + "_stacked", true
	default:
		return prefix, true
	}
}

// Normalize appends this clip's normalization subgraph to g and returns the
// pad carrying the normalized stream: RGBA when alpha is enabled, RGB
// otherwise. index resolves a named input to its input-file index.
func (f *Foreground) Normalize(g *graph.Graph, index func(name string) int, prefix string, alphaEnabled bool) graph.Pad {
	switch f.Format {
	case FormatAlphaWebM, FormatAlphaMov:
		in := graph.InputVideo(index(prefix))
		if !alphaEnabled {
			return g.Chain(in, "format", "rgb24")
		}
		// The container already decodes to RGBA-equivalent
		return in

	case FormatPair:
		rgbIn := graph.InputVideo(index(prefix + "_rgb"))
		if !alphaEnabled {
			return g.Chain(rgbIn, "format", "rgb24")
		}
		rgba := g.Chain(rgbIn, "format", "rgba")
		mask := g.Chain(graph.InputVideo(index(prefix+"_mask")), "format", "gray")
		if !f.SoftMask {
			mask = g.Chain(mask, "geq", thresholdExpr)
		}
		out := g.VideoPad()
		g.Add("alphamerge", "", []graph.Pad{rgba, mask}, []graph.Pad{out})
		return out

	case FormatStacked:
		fallthrough
	default:
		in := graph.InputVideo(index(prefix + "_stacked"))
		if !alphaEnabled {
			top := g.Chain(in, "crop", "iw:ih/2:0:0")
			return g.Chain(top, "format", "rgb24")
		}
		colorHalf := g.VideoPad()
		matteHalf := g.VideoPad()
		g.Add("split", "", []graph.Pad{in}, []graph.Pad{colorHalf, matteHalf})

		rgba := g.Chain(g.Chain(colorHalf, "crop", "iw:ih/2:0:0"), "format", "rgba")
		mask := g.Chain(g.Chain(matteHalf, "crop", "iw:ih/2:0:ih/2"), "format", "gray")
		mask = g.Chain(mask, "geq", thresholdExpr)

		out := g.VideoPad()
		g.Add("alphamerge", "", []graph.Pad{rgba, mask}, []graph.Pad{out})
		return out
	}
}
