package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/peelkit/matte/compose"
	"github.com/peelkit/matte/encoder"
	"github.com/peelkit/matte/source"
)

// projectSpec is the on-disk project file schema.
type projectSpec struct {
	Background *backgroundSpec `yaml:"background"`
	Layers     []layerSpec     `yaml:"layers"`
	Output     outputSpec      `yaml:"output"`
}

type backgroundSpec struct {
	Color  string    `yaml:"color"`
	Image  string    `yaml:"image"`
	Video  string    `yaml:"video"`
	Width  int       `yaml:"width"`
	Height int       `yaml:"height"`
	FPS    float64   `yaml:"fps"`
	Audio  *bool     `yaml:"audio"`
	Volume *float64  `yaml:"volume"`
	Trim   *trimSpec `yaml:"trim"`
}

type trimSpec struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
}

type layerSpec struct {
	Name      string    `yaml:"name"`
	Source    string    `yaml:"source"`
	Mask      string    `yaml:"mask"`
	AudioFile string    `yaml:"audio_file"`
	SoftAlpha bool      `yaml:"soft_alpha"`
	Anchor    string    `yaml:"anchor"`
	OffsetX   int       `yaml:"offset_x"`
	OffsetY   int       `yaml:"offset_y"`
	X         string    `yaml:"x"`
	Y         string    `yaml:"y"`
	Size      *sizeSpec `yaml:"size"`
	Opacity   *float64  `yaml:"opacity"`
	Rotate    float64   `yaml:"rotate"`
	Start     float64   `yaml:"start"`
	End       *float64  `yaml:"end"`
	Duration  *float64  `yaml:"duration"`
	Trim      *trimSpec `yaml:"trim"`
	Audio     *bool     `yaml:"audio"`
	Volume    *float64  `yaml:"volume"`
	Alpha     *bool     `yaml:"alpha"`
	Z         *int      `yaml:"z"`
}

type sizeSpec struct {
	Mode     string  `yaml:"mode"`
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
	PercentW float64 `yaml:"percent_w"`
	PercentH float64 `yaml:"percent_h"`
	ScaleX   float64 `yaml:"scale_x"`
	ScaleY   float64 `yaml:"scale_y"`
}

type outputSpec struct {
	Duration *float64 `yaml:"duration"`
	Width    int      `yaml:"width"`
	Height   int      `yaml:"height"`
	FPS      float64  `yaml:"fps"`
	Format   string   `yaml:"format"`
	CRF      int      `yaml:"crf"`
	Preset   string   `yaml:"preset"`
	Speed    int      `yaml:"speed"`
}

func loadProject(path string) (*projectSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}
	p := &projectSpec{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse project: %w", err)
	}
	if len(p.Layers) == 0 {
		return nil, fmt.Errorf("project has no layers")
	}
	return p, nil
}

// build converts the schema into a live composition and encoder profile.
func (p *projectSpec) build() (*compose.Composition, encoder.Profile, error) {
	bg, err := p.buildBackground()
	if err != nil {
		return nil, encoder.Profile{}, err
	}

	comp := compose.New(bg)
	if p.Output.Width > 0 && p.Output.Height > 0 {
		comp = comp.SetCanvas(p.Output.Width, p.Output.Height, p.Output.FPS)
	}
	if p.Output.Duration != nil {
		comp = comp.SetDuration(*p.Output.Duration)
	}

	for i, ls := range p.Layers {
		fg, err := buildForeground(ls)
		if err != nil {
			return nil, encoder.Profile{}, fmt.Errorf("layer %d: %w", i, err)
		}

		h := comp.Add(fg, ls.Name)
		applyLayer(h, ls)
	}

	profile, err := p.buildProfile()
	if err != nil {
		return nil, encoder.Profile{}, err
	}
	return comp, profile, nil
}

func (p *projectSpec) buildBackground() (*source.Background, error) {
	bs := p.Background
	if bs == nil {
		return nil, nil
	}

	var bg *source.Background
	var err error
	switch {
	case bs.Color != "":
		bg, err = source.NewColor(bs.Color, bs.Width, bs.Height, bs.FPS)
		if err != nil {
			return nil, err
		}
	case bs.Image != "":
		bg = source.NewImage(bs.Image)
	case bs.Video != "":
		bg = source.NewVideo(bs.Video)
	default:
		bg = source.NewEmpty(bs.Width, bs.Height, bs.FPS)
	}

	if bs.Trim != nil {
		bg = bg.Subclip(bs.Trim.Start, bs.Trim.End)
	}
	if bs.Audio != nil || bs.Volume != nil {
		enabled := bg.AudioEnabled
		if bs.Audio != nil {
			enabled = *bs.Audio
		}
		volume := 1.0
		if bs.Volume != nil {
			volume = *bs.Volume
		}
		bg = bg.Audio(enabled, volume)
	}
	return bg, nil
}

func buildForeground(ls layerSpec) (*source.Foreground, error) {
	var fg *source.Foreground
	var err error
	if ls.Mask != "" {
		fg, err = source.NewPair(ls.Source, ls.Mask, ls.AudioFile)
	} else {
		fg, err = source.FromFile(ls.Source)
	}
	if err != nil {
		return nil, err
	}

	if ls.SoftAlpha {
		fg = fg.SoftAlpha(true)
	}
	if ls.Trim != nil {
		fg = fg.Subclip(ls.Trim.Start, ls.Trim.End)
	}
	return fg, nil
}

func applyLayer(h *compose.Handle, ls layerSpec) {
	if ls.Anchor != "" || ls.OffsetX != 0 || ls.OffsetY != 0 {
		h.At(parseAnchor(ls.Anchor), ls.OffsetX, ls.OffsetY)
	}
	if ls.X != "" || ls.Y != "" {
		h.XY(ls.X, ls.Y)
	}
	if ls.Size != nil {
		applySize(h, *ls.Size)
	}
	if ls.Opacity != nil {
		h.Opacity(*ls.Opacity)
	}
	if ls.Rotate != 0 {
		h.Rotate(ls.Rotate)
	}
	if ls.Start > 0 {
		h.Start(ls.Start)
	}
	if ls.End != nil {
		h.End(*ls.End)
	}
	if ls.Duration != nil {
		h.Duration(*ls.Duration)
	}
	if ls.Audio != nil || ls.Volume != nil {
		enabled := true
		if ls.Audio != nil {
			enabled = *ls.Audio
		}
		volume := 1.0
		if ls.Volume != nil {
			volume = *ls.Volume
		}
		h.Audio(enabled, volume)
	}
	if ls.Alpha != nil {
		h.Alpha(*ls.Alpha)
	}
	if ls.Z != nil {
		h.Z(*ls.Z)
	}
}

func applySize(h *compose.Handle, s sizeSpec) {
	switch strings.ToLower(s.Mode) {
	case "pixels":
		h.SizePixels(s.Width, s.Height)
	case "percent":
		h.SizePercent(s.PercentW, s.PercentH)
	case "cover":
		h.Cover()
	case "fit-width":
		h.FitWidth()
	case "fit-height":
		h.FitHeight()
	case "scale":
		h.Scale(s.ScaleX, s.ScaleY)
	default:
		h.Contain()
	}
}

func parseAnchor(s string) compose.Anchor {
	switch strings.ToLower(s) {
	case "top-left":
		return compose.AnchorTopLeft
	case "top":
		return compose.AnchorTop
	case "top-right":
		return compose.AnchorTopRight
	case "left":
		return compose.AnchorLeft
	case "right":
		return compose.AnchorRight
	case "bottom-left":
		return compose.AnchorBottomLeft
	case "bottom":
		return compose.AnchorBottom
	case "bottom-right":
		return compose.AnchorBottomRight
	default:
		return compose.AnchorCenter
	}
}

func (p *projectSpec) buildProfile() (encoder.Profile, error) {
	switch strings.ToLower(p.Output.Format) {
	case "", "mp4", "h264":
		return encoder.NewH264(p.Output.CRF, p.Output.Preset), nil
	case "webm", "alpha-webm":
		return encoder.NewVP9Alpha(p.Output.CRF, p.Output.Speed), nil
	case "mov", "prores":
		return encoder.NewProRes4444(), nil
	case "stacked":
		return encoder.NewStacked(encoder.LayoutVertical, p.Output.CRF), nil
	case "gif":
		return encoder.NewGIF(p.Output.FPS), nil
	default:
		return encoder.Profile{}, fmt.Errorf("unknown output format %q (supported: mp4, webm, mov, stacked, gif)", p.Output.Format)
	}
}
