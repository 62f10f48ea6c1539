// Package compose turns a declarative stack of timed, positioned,
// alpha-blended layers over a backdrop into a single ffmpeg invocation. The
// layer model is compiled in one shot on every export: inputs are emitted in
// add-order, the visual pass runs in z-order, and the filter graph is built
// structurally and serialized last.
package compose

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peelkit/matte/encoder"
	"github.com/peelkit/matte/graph"
	"github.com/peelkit/matte/internal/runner"
	"github.com/peelkit/matte/mediactx"
	"github.com/peelkit/matte/pkg/util"
	"github.com/peelkit/matte/source"
)

// ErrCanvasUnresolved is returned when neither a backdrop nor an explicit
// canvas supplies output dimensions.
var ErrCanvasUnresolved = errors.New("cannot resolve canvas size: attach a background or call SetCanvas")

// CropRect is an optional per-layer source crop in pixels.
type CropRect struct {
	X, Y, W, H int
}

// Layer is one foreground's placement record inside a Composition. Fields
// are mutated in place through the Handle returned by Add.
type Layer struct {
	Name string
	FG   *source.Foreground

	Anchor  Anchor
	OffsetX int
	OffsetY int
	PosX    string
	PosY    string

	Size sizing

	Opacity  float64
	Rotation float64
	Crop     *CropRect

	Start  float64
	End    float64
	HasEnd bool
	Dur    float64
	HasDur bool

	AudioEnabled bool
	Volume       float64
	AlphaEnabled bool

	Z int
}

// effectiveDuration is the layer's contribution to duration resolution: the
// point on the composition timeline where it ends, or 0 when unknowable.
func (l *Layer) effectiveDuration() float64 {
	if l.HasDur {
		return l.Start + l.Dur
	}
	if l.HasEnd {
		return l.End
	}
	if d := l.FG.EffectiveDuration(); d > 0 {
		return l.Start + d
	}
	return 0
}

// Composition accumulates a backdrop plus an ordered layer stack until an
// export or dry-run compiles it.
type Composition struct {
	Background *source.Background

	layers []*Layer

	canvasW   int
	canvasH   int
	canvasFPS float64

	duration    float64
	hasDuration bool
}

// New builds a Composition over an optional backdrop. Pass nil to composite
// onto a fully transparent canvas set later via SetCanvas.
func New(bg *source.Background) *Composition {
	return &Composition{Background: bg}
}

// SetCanvas returns a copy carrying an explicit canvas override. Backdrop
// dimensions still take precedence when a backdrop is attached.
func (c *Composition) SetCanvas(width, height int, fps float64) *Composition {
	n := *c
	n.canvasW = width
	n.canvasH = height
	n.canvasFPS = fps
	return &n
}

// SetDuration returns a copy carrying an explicit output duration, which
// overrides every other duration source.
func (c *Composition) SetDuration(seconds float64) *Composition {
	n := *c
	n.duration = seconds
	n.hasDuration = true
	return &n
}

// Layers exposes the layer stack in add-order.
func (c *Composition) Layers() []*Layer {
	return c.layers
}

// Add appends fg as a new layer and returns its mutation handle. Defaults:
// centered, contain sizing, full opacity, alpha and audio enabled, z equal
// to the add position. Names are not checked for uniqueness.
func (c *Composition) Add(fg *source.Foreground, name string) *Handle {
	if name == "" {
		name = fmt.Sprintf("layer_%d", len(c.layers))
	}
	l := &Layer{
		Name:         name,
		FG:           fg,
		Anchor:       AnchorCenter,
		Size:         sizing{Mode: SizeContain},
		Opacity:      1,
		AudioEnabled: true,
		Volume:       1,
		AlphaEnabled: true,
		Z:            len(c.layers),
	}
	c.layers = append(c.layers, l)
	return &Handle{c: c, idx: len(c.layers) - 1}
}

// Handle mutates one layer in place. Every method returns the handle for
// chaining. Nonsense values (negative rotation, out-of-range crops,
// contradictory timing) are accepted as-is; ffmpeg rejects them at run time
// if it cares.
type Handle struct {
	c   *Composition
	idx int
}

func (h *Handle) layer() *Layer { return h.c.layers[h.idx] }

// At sets the anchor and pixel offset.
func (h *Handle) At(anchor Anchor, dx, dy int) *Handle {
	l := h.layer()
	l.Anchor = anchor
	l.OffsetX = dx
	l.OffsetY = dy
	return h
}

// XY sets raw overlay position expressions, overriding the anchor.
func (h *Handle) XY(x, y string) *Handle {
	l := h.layer()
	l.PosX = x
	l.PosY = y
	return h
}

// SizePixels scales the layer into an explicit pixel box, preserving aspect.
func (h *Handle) SizePixels(width, height int) *Handle {
	h.layer().Size = sizing{Mode: SizePixels, Width: width, Height: height}
	return h
}

// SizePercent scales the layer into a box sized as a percentage of the
// canvas per axis. A non-positive percent defaults to 100.
func (h *Handle) SizePercent(pw, ph float64) *Handle {
	h.layer().Size = sizing{Mode: SizePercent, PercentW: pw, PercentH: ph}
	return h
}

// Contain fits the layer inside the canvas, preserving aspect.
func (h *Handle) Contain() *Handle {
	h.layer().Size = sizing{Mode: SizeContain}
	return h
}

// Cover fills the canvas with the layer, preserving aspect.
func (h *Handle) Cover() *Handle {
	h.layer().Size = sizing{Mode: SizeCover}
	return h
}

// FitWidth matches the canvas width with automatic height.
func (h *Handle) FitWidth() *Handle {
	h.layer().Size = sizing{Mode: SizeFitWidth}
	return h
}

// FitHeight matches the canvas height with automatic width.
func (h *Handle) FitHeight() *Handle {
	h.layer().Size = sizing{Mode: SizeFitHeight}
	return h
}

// Scale multiplies the source dimensions by explicit factors. A
// non-positive sy reuses sx; a non-positive sx means 1.
func (h *Handle) Scale(sx, sy float64) *Handle {
	h.layer().Size = sizing{Mode: SizeScale, ScaleX: sx, ScaleY: sy}
	return h
}

// Opacity sets the layer opacity, clamped to [0, 1].
func (h *Handle) Opacity(v float64) *Handle {
	h.layer().Opacity = clampUnit(v)
	return h
}

// Rotate sets the layer rotation in degrees.
func (h *Handle) Rotate(degrees float64) *Handle {
	h.layer().Rotation = degrees
	return h
}

// Crop sets a source crop rectangle in pixels.
func (h *Handle) Crop(x, y, w, height int) *Handle {
	h.layer().Crop = &CropRect{X: x, Y: y, W: w, H: height}
	return h
}

// Start sets the layer's composition-timeline start offset in seconds.
func (h *Handle) Start(seconds float64) *Handle {
	h.layer().Start = seconds
	return h
}

// End sets the layer's composition-timeline end in seconds.
func (h *Handle) End(seconds float64) *Handle {
	l := h.layer()
	l.End = seconds
	l.HasEnd = true
	return h
}

// Duration sets the layer's duration on the composition timeline.
func (h *Handle) Duration(seconds float64) *Handle {
	l := h.layer()
	l.Dur = seconds
	l.HasDur = true
	return h
}

// Subclip trims the layer's source. The underlying Foreground is never
// mutated; the layer swaps to a trimmed copy.
func (h *Handle) Subclip(start, end float64) *Handle {
	l := h.layer()
	l.FG = l.FG.Subclip(start, end)
	return h
}

// Audio toggles the layer's audio contribution; volume is clamped to [0, 1].
func (h *Handle) Audio(enabled bool, volume float64) *Handle {
	l := h.layer()
	l.AudioEnabled = enabled
	l.Volume = clampUnit(volume)
	return h
}

// Z overrides the layer's compositing order. Lower z composites first
// (bottom); ties keep add-order.
func (h *Handle) Z(z int) *Handle {
	h.layer().Z = z
	return h
}

// Alpha toggles transparency for the layer. Disabled, the foreground's
// matte is ignored and the color stream composites fully opaque.
func (h *Handle) Alpha(enabled bool) *Handle {
	h.layer().AlphaEnabled = enabled
	return h
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

// resolveCanvas applies the priority backdrop dimensions, then explicit
// canvas, then error.
func (c *Composition) resolveCanvas() (w, h int, fps float64, err error) {
	if c.Background != nil && c.Background.Width > 0 && c.Background.Height > 0 {
		fps = c.Background.FPS
		if fps <= 0 {
			fps = c.canvasFPS
		}
		if fps <= 0 {
			fps = 30
		}
		return c.Background.Width, c.Background.Height, fps, nil
	}
	if c.canvasW > 0 && c.canvasH > 0 {
		fps = c.canvasFPS
		if fps <= 0 {
			fps = 30
		}
		return c.canvasW, c.canvasH, fps, nil
	}
	return 0, 0, 0, ErrCanvasUnresolved
}

// resolveDuration applies the three-rule priority: explicit override, then
// a duration-controlling backdrop, then the longest layer. No resolvable
// value means run to EOF, reported as ok=false.
func (c *Composition) resolveDuration() (float64, bool) {
	if c.hasDuration {
		return c.duration, true
	}
	if c.Background != nil && c.Background.ControlsDuration() {
		if d := c.Background.Duration(); d > 0 {
			return d, true
		}
	}
	var max float64
	for _, l := range c.layers {
		if d := l.effectiveDuration(); d > max {
			max = d
		}
	}
	if max > 0 {
		return max, true
	}
	return 0, false
}

// ResolvedDuration reports the output duration the next export will use,
// or ok=false when the invocation runs to EOF.
func (c *Composition) ResolvedDuration() (float64, bool) {
	return c.resolveDuration()
}

// audioSource is one contributor to the output mix.
type audioSource struct {
	pad    graph.Pad
	delay  float64
	volume float64
}

// BuildArgs compiles the composition into the full ffmpeg argument list for
// the given encoder profile and output path. Pure except for capability
// queries on the current media context; no process is spawned.
func (c *Composition) BuildArgs(profile encoder.Profile, outPath string) ([]string, error) {
	canvasW, canvasH, canvasFPS, err := c.resolveCanvas()
	if err != nil {
		return nil, err
	}
	mc := mediactx.Current()

	args := []string{"-y"}

	// Input emission runs in add-order; the visual pass below runs in
	// z-order. Both orders are load-bearing for output determinism.
	indexByName := make(map[string]int)
	nextIndex := 0

	if c.Background != nil {
		args = append(args, c.Background.InputArgs(canvasW, canvasH, canvasFPS, mc)...)
	} else {
		args = append(args, source.NewEmpty(canvasW, canvasH, canvasFPS).InputArgs(canvasW, canvasH, canvasFPS, mc)...)
	}
	nextIndex++

	var audioSources []audioSource
	if c.Background != nil && c.Background.HasAudio() {
		audioSources = append(audioSources, audioSource{
			pad:    graph.InputAudio(0),
			volume: c.Background.AudioVolume,
		})
	}

	for i, l := range c.layers {
		prefix := fmt.Sprintf("layer_%d", i)
		for _, in := range l.FG.Inputs(prefix, mc) {
			args = append(args, in.Args...)
			indexByName[in.Name] = nextIndex
			nextIndex++
		}
		if !l.AudioEnabled {
			continue
		}
		if name, ok := l.FG.AudioInput(prefix); ok {
			audioSources = append(audioSources, audioSource{
				pad:    graph.InputAudio(indexByName[name]),
				delay:  l.Start,
				volume: l.Volume,
			})
		}
	}

	index := func(name string) int { return indexByName[name] }

	order := make([]*Layer, len(c.layers))
	copy(order, c.layers)
	sort.SliceStable(order, func(i, j int) bool { return order[i].Z < order[j].Z })

	g := graph.New()
	cur := graph.InputVideo(0)
	for i, l := range order {
		// The index function keys off the original add position, not
		// the z position.
		prefix := fmt.Sprintf("layer_%d", c.addIndex(l))
		pad := l.FG.Normalize(g, index, prefix, l.AlphaEnabled)
		pad = c.transformChain(g, pad, l, canvasW, canvasH)

		x, y := c.position(l, canvasW, canvasH)
		out := graph.Pad{Label: "vout", Kind: graph.Video}
		if i < len(order)-1 {
			out = g.VideoPad()
		}
		g.Add("overlay", fmt.Sprintf("x=%s:y=%s:eof_action=pass", x, y), []graph.Pad{cur, pad}, []graph.Pad{out})
		cur = out
	}

	audioPad, hasAudio := c.buildAudio(g, audioSources)

	if !g.Empty() {
		if err := g.Validate(); err != nil {
			return nil, err
		}
		args = append(args, "-filter_complex", g.String())
	}

	args = append(args, "-map", mapLabel(cur))
	if hasAudio {
		args = append(args, "-map", mapLabel(audioPad))
	} else {
		args = append(args, "-an")
	}

	if d, ok := c.resolveDuration(); ok {
		args = append(args, "-t", util.FormatSeconds(d))
	}

	args = append(args, profile.Args()...)
	return append(args, outPath), nil
}

func (c *Composition) addIndex(l *Layer) int {
	for i, cand := range c.layers {
		if cand == l {
			return i
		}
	}
	return 0
}

// transformChain appends the fixed per-layer sequence: timeline shift,
// crop, scale, rotate, opacity. Steps with no effect are skipped.
func (c *Composition) transformChain(g *graph.Graph, pad graph.Pad, l *Layer, canvasW, canvasH int) graph.Pad {
	if l.Start > 0 {
		pad = g.Chain(pad, "setpts", fmt.Sprintf("PTS-STARTPTS+%s/TB", util.FormatSeconds(l.Start)))
	}
	if l.Crop != nil {
		pad = g.Chain(pad, "crop", fmt.Sprintf("%d:%d:%d:%d", l.Crop.W, l.Crop.H, l.Crop.X, l.Crop.Y))
	}
	spec, _, _, _ := l.Size.scaleSpec(canvasW, canvasH)
	pad = g.Chain(pad, "scale", spec)
	if l.Rotation != 0 {
		pad = g.Chain(pad, "rotate", fmt.Sprintf("%g", l.Rotation*math.Pi/180))
	}
	if l.Opacity != 1 {
		pad = g.Chain(pad, "colorchannelmixer", fmt.Sprintf("aa=%g", l.Opacity))
	}
	return pad
}

func (c *Composition) position(l *Layer, canvasW, canvasH int) (x, y string) {
	if l.PosX != "" || l.PosY != "" {
		x, y = l.PosX, l.PosY
		if x == "" {
			x = "0"
		}
		if y == "" {
			y = "0"
		}
		return x, y
	}
	_, boxW, boxH, hasBox := l.Size.scaleSpec(canvasW, canvasH)
	return placement(l.Anchor, l.OffsetX, l.OffsetY, canvasW, canvasH, boxW, boxH, hasBox)
}

// buildAudio wires the collected audio sources into the graph. Zero sources
// means no audio track. A single clean source maps straight through without
// filtering. Anything else gets per-source delay and volume, and two or
// more sources are mixed for the duration of the longest.
func (c *Composition) buildAudio(g *graph.Graph, sources []audioSource) (graph.Pad, bool) {
	switch len(sources) {
	case 0:
		return graph.Pad{}, false

	case 1:
		s := sources[0]
		if s.delay <= 0 && s.volume == 1 {
			return s.pad, true
		}
		out := graph.Pad{Label: "aout", Kind: graph.Audio}
		switch {
		case s.delay > 0 && s.volume != 1:
			pad := g.Chain(s.pad, "adelay", fmt.Sprintf("%d:all=1", delayMillis(s.delay)))
			g.ChainTo(pad, "volume", fmt.Sprintf("%g", s.volume), out)
		case s.delay > 0:
			g.ChainTo(s.pad, "adelay", fmt.Sprintf("%d:all=1", delayMillis(s.delay)), out)
		default:
			g.ChainTo(s.pad, "volume", fmt.Sprintf("%g", s.volume), out)
		}
		return out, true

	default:
		mixed := make([]graph.Pad, 0, len(sources))
		for _, s := range sources {
			pad := g.Chain(s.pad, "adelay", fmt.Sprintf("%d:all=1", delayMillis(s.delay)))
			pad = g.Chain(pad, "volume", fmt.Sprintf("%g", s.volume))
			mixed = append(mixed, pad)
		}
		out := graph.Pad{Label: "aout", Kind: graph.Audio}
		g.Add("amix", fmt.Sprintf("inputs=%d:duration=longest", len(sources)), mixed, []graph.Pad{out})
		return out, true
	}
}

func delayMillis(seconds float64) int {
	return int(math.Floor(seconds * 1000))
}

func mapLabel(p graph.Pad) string {
	if strings.Contains(p.Label, ":") {
		return p.Label
	}
	return "[" + p.Label + "]"
}

// DryRun compiles the argument list without spawning anything and returns
// it as one space-joined string starting with the ffmpeg binary name.
func (c *Composition) DryRun(profile encoder.Profile, outPath string) (string, error) {
	args, err := c.BuildArgs(profile, outPath)
	if err != nil {
		return "", err
	}
	mc := mediactx.Current()
	return strings.Join(append([]string{mc.FFmpegPath}, args...), " "), nil
}

// ExportOptions tune a ToFile run.
type ExportOptions struct {
	Verbose    bool
	OnProgress func(runner.Progress)
}

// ToFile compiles the composition and runs ffmpeg to completion. A nonzero
// exit surfaces the captured diagnostic stream; a missing binary surfaces
// runner.ErrBinaryNotFound. The render goes to a scope-owned staging path
// first and only moves to path on success, so a failed export never leaves
// a partial output file and the staging temp is cleaned on every exit path.
func (c *Composition) ToFile(ctx context.Context, path string, profile encoder.Profile, opts ExportOptions) error {
	mc := mediactx.Current()
	scope := mc.NewScope()
	defer scope.Close()

	// Keep the output extension so ffmpeg's container inference still works.
	staging := scope.TempPath("export-*" + filepath.Ext(path))

	args, err := c.BuildArgs(profile, staging)
	if err != nil {
		return err
	}

	err = runner.Run(ctx, mc.FFmpegPath, args, runner.Options{
		Verbose:    opts.Verbose,
		OnProgress: opts.OnProgress,
		Logger:     mc.Logger,
	})
	if err != nil {
		return err
	}

	if err := util.MoveFile(staging, path); err != nil {
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	return nil
}
