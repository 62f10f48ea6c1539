// Package matte composites transparency-carrying video over new backdrops.
//
// It pairs a thin client for a remote background-removal API with an ffmpeg
// composition engine: foregrounds in any of four alpha encodings (WebM with
// native alpha, ProRes 4444 MOV, color+mask pair bundles, stacked frames)
// are normalized, positioned, timed, and blended over a color, image, video,
// or transparent backdrop, then encoded through a selectable profile.
//
// # Basic Usage
//
//	matte.Configure("", "", "") // resolve ffmpeg/ffprobe from PATH
//
//	bg, err := matte.ColorBackground("#00FF00", 1920, 1080, 30)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fg, err := matte.ForegroundFromFile("subject.webm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	comp := matte.NewComposition(bg)
//	comp.Add(fg, "subject").At(matte.AnchorBottom, 0, -40).SizePercent(60, 0)
//
//	err = comp.ToFile(ctx, "out.mp4", matte.H264Profile(23, "fast"), matte.ExportOptions{})
//
// # Remote Background Removal
//
//	c := matte.NewClient(os.Getenv("MATTE_API_KEY"))
//	job, err := c.CreateJobFromFile(ctx, "raw.mp4")
//	job, err = c.StartJob(ctx, job.ID, client.StartOptions{Format: "alpha-webm"})
//	job, err = c.WaitForJob(ctx, job.ID, nil)
//	fg, err := c.FetchResult(ctx, job)
package matte

import (
	"github.com/rs/zerolog/log"

	"github.com/peelkit/matte/client"
	"github.com/peelkit/matte/compose"
	"github.com/peelkit/matte/encoder"
	"github.com/peelkit/matte/mediactx"
	"github.com/peelkit/matte/source"
)

// Re-exported core types.
type (
	Composition   = compose.Composition
	Layer         = compose.Layer
	Handle        = compose.Handle
	Anchor        = compose.Anchor
	ExportOptions = compose.ExportOptions

	Background = source.Background
	Foreground = source.Foreground

	Profile = encoder.Profile

	Client = client.Client
	Job    = client.Job
)

// Anchor grid.
const (
	AnchorTopLeft     = compose.AnchorTopLeft
	AnchorTop         = compose.AnchorTop
	AnchorTopRight    = compose.AnchorTopRight
	AnchorLeft        = compose.AnchorLeft
	AnchorCenter      = compose.AnchorCenter
	AnchorRight       = compose.AnchorRight
	AnchorBottomLeft  = compose.AnchorBottomLeft
	AnchorBottom      = compose.AnchorBottom
	AnchorBottomRight = compose.AnchorBottomRight
)

// Configure sets the process-wide media context. Empty paths resolve
// through PATH; an empty tempDir uses the system default.
func Configure(ffmpegPath, ffprobePath, tempDir string) {
	mediactx.SetCurrent(mediactx.New(ffmpegPath, ffprobePath, tempDir, log.Logger))
}

// Cleanup removes every temp file registered on the current context.
func Cleanup() {
	mediactx.Current().Cleanup()
}

// NewComposition builds a composition over an optional backdrop.
func NewComposition(bg *Background) *Composition {
	return compose.New(bg)
}

// Backdrop constructors.
var (
	ColorBackground = source.NewColor
	ImageBackground = source.NewImage
	VideoBackground = source.NewVideo
	EmptyBackground = source.NewEmpty
)

// Foreground constructors.
var (
	ForegroundFromFile    = source.FromFile
	ForegroundFromArchive = source.FromArchive
	AlphaWebMForeground   = source.NewAlphaWebM
	AlphaMovForeground    = source.NewAlphaMov
	PairForeground        = source.NewPair
	StackedForeground     = source.NewStacked
)

// Encoder profiles.
var (
	H264Profile    = encoder.NewH264
	WebMProfile    = encoder.NewVP9Alpha
	ProResProfile  = encoder.NewProRes4444
	StackedProfile = encoder.NewStacked
	GIFProfile     = encoder.NewGIF
)

// NewClient builds a background-removal API client.
var NewClient = client.New
