// Package probe extracts stream metadata from local files and URLs by
// shelling out to ffprobe. Probing never fails hard: when ffprobe is
// missing, times out, or returns garbage, callers get a placeholder with
// codec "unknown" and must treat every derived field as optional.
package probe

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"time"

	"github.com/peelkit/matte/mediactx"
	"github.com/peelkit/matte/pkg/util"
)

const probeTimeout = 10 * time.Second

// DefaultFPS is assumed when the probed frame rate does not parse.
const DefaultFPS = 30.0

// Info is the probed metadata for one source. Zero/empty fields mean the
// prober could not determine them.
type Info struct {
	Codec    string
	PixFmt   string
	Width    int
	Height   int
	Duration float64
	Rotation int
	FPS      float64
	HasAudio bool
}

// Unknown reports whether this Info is the probing-failure placeholder.
func (i *Info) Unknown() bool {
	return i.Codec == "unknown"
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	PixFmt       string            `json:"pix_fmt"`
	Duration     string            `json:"duration"`
	RFrameRate   string            `json:"r_frame_rate"`
	Tags         map[string]string `json:"tags"`
	SideDataList []ffprobeSideData `json:"side_data_list"`
}

type ffprobeSideData struct {
	Rotation int `json:"rotation"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

// Probe runs ffprobe against a path or URL. The call is bounded by a fixed
// timeout and read-only; failures degrade to a placeholder Info.
func Probe(ctx context.Context, mc *mediactx.Context, src string) *Info {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, mc.FFprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		src,
	)

	output, err := cmd.Output()
	if err != nil {
		mc.Logger.Debug().Err(err).Str("src", src).Msg("probe failed")
		return placeholder()
	}

	return Parse(output)
}

// Parse decodes raw ffprobe JSON into an Info. Exported so callers with
// pre-captured probe output (and tests) can reuse the exact field rules.
func Parse(raw []byte) *Info {
	var ff ffprobeOutput
	if err := json.Unmarshal(raw, &ff); err != nil {
		return placeholder()
	}

	info := &Info{FPS: DefaultFPS}
	seenVideo := false

	for _, s := range ff.Streams {
		switch s.CodecType {
		case "video":
			if seenVideo {
				continue
			}
			seenVideo = true
			info.Codec = s.CodecName
			info.PixFmt = s.PixFmt
			info.Width = s.Width
			info.Height = s.Height
			info.FPS = util.ParseFrameRate(s.RFrameRate, DefaultFPS)
			info.Rotation = streamRotation(s)
			if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
				info.Duration = d
			}
		case "audio":
			info.HasAudio = true
		}
	}

	if info.Duration == 0 {
		if d, err := strconv.ParseFloat(ff.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}

	if !seenVideo {
		info.Codec = "unknown"
	}

	// A 90/270 rotation tag means the display geometry is swapped
	if info.Rotation == 90 || info.Rotation == 270 {
		info.Width, info.Height = info.Height, info.Width
	}

	return info
}

func streamRotation(s ffprobeStream) int {
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			return normalizeRotation(sd.Rotation)
		}
	}
	if r, ok := s.Tags["rotate"]; ok {
		if v, err := strconv.Atoi(r); err == nil {
			return normalizeRotation(v)
		}
	}
	return 0
}

func normalizeRotation(r int) int {
	r %= 360
	if r < 0 {
		r += 360
	}
	return r
}

func placeholder() *Info {
	return &Info{Codec: "unknown", FPS: DefaultFPS}
}
