package probe

import (
	"context"
	"testing"

	"github.com/peelkit/matte/mediactx"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "streams": [
    {
      "codec_name": "h264",
      "codec_type": "video",
      "width": 1920,
      "height": 1080,
      "pix_fmt": "yuv420p",
      "duration": "12.480000",
      "r_frame_rate": "30000/1001"
    },
    {
      "codec_name": "aac",
      "codec_type": "audio"
    }
  ],
  "format": {
    "duration": "12.523000"
  }
}`

func TestParse(t *testing.T) {
	info := Parse([]byte(sampleJSON))

	require.Equal(t, "h264", info.Codec)
	require.Equal(t, "yuv420p", info.PixFmt)
	require.Equal(t, 1920, info.Width)
	require.Equal(t, 1080, info.Height)
	require.InDelta(t, 12.48, info.Duration, 0.001)
	require.InDelta(t, 29.97, info.FPS, 0.01)
	require.True(t, info.HasAudio)
	require.False(t, info.Unknown())
}

func TestParseFormatDurationFallback(t *testing.T) {
	raw := `{
	  "streams": [{"codec_name": "vp9", "codec_type": "video", "width": 640, "height": 360, "r_frame_rate": "25/1"}],
	  "format": {"duration": "4.5"}
	}`
	info := Parse([]byte(raw))
	require.InDelta(t, 4.5, info.Duration, 0.001)
	require.Equal(t, 25.0, info.FPS)
	require.False(t, info.HasAudio)
}

func TestParseRotationSwapsDimensions(t *testing.T) {
	cases := []string{
		// side_data rotation
		`{"streams":[{"codec_name":"h264","codec_type":"video","width":1920,"height":1080,"r_frame_rate":"30/1","side_data_list":[{"rotation":-90}]}],"format":{}}`,
		// legacy rotate tag
		`{"streams":[{"codec_name":"h264","codec_type":"video","width":1920,"height":1080,"r_frame_rate":"30/1","tags":{"rotate":"90"}}],"format":{}}`,
	}
	for _, raw := range cases {
		info := Parse([]byte(raw))
		require.Equal(t, 1080, info.Width)
		require.Equal(t, 1920, info.Height)
	}
}

func TestParseRotation180KeepsDimensions(t *testing.T) {
	raw := `{"streams":[{"codec_name":"h264","codec_type":"video","width":1920,"height":1080,"r_frame_rate":"30/1","tags":{"rotate":"180"}}],"format":{}}`
	info := Parse([]byte(raw))
	require.Equal(t, 1920, info.Width)
	require.Equal(t, 1080, info.Height)
}

func TestParseBadFrameRateDefaults(t *testing.T) {
	raw := `{"streams":[{"codec_name":"h264","codec_type":"video","width":10,"height":10,"r_frame_rate":"0/0"}],"format":{}}`
	info := Parse([]byte(raw))
	require.Equal(t, DefaultFPS, info.FPS)
}

func TestParseGarbageDegrades(t *testing.T) {
	info := Parse([]byte("not json"))
	require.True(t, info.Unknown())
	require.Equal(t, DefaultFPS, info.FPS)
}

func TestProbeMissingBinaryDegrades(t *testing.T) {
	mc := mediactx.New("/nonexistent/ffmpeg", "/nonexistent/ffprobe", t.TempDir(), zerolog.Nop())
	info := Probe(context.Background(), mc, "whatever.mp4")
	require.True(t, info.Unknown())
}
