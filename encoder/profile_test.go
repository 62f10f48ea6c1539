package encoder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestH264Args(t *testing.T) {
	args := NewH264(18, "fast").Args()
	joined := strings.Join(args, " ")

	require.Contains(t, joined, "-c:v libx264")
	require.Contains(t, joined, "-crf 18")
	require.Contains(t, joined, "-preset fast")
	require.Contains(t, joined, "-pix_fmt yuv420p")
	require.NotContains(t, joined, "-r ")
}

func TestH264Defaults(t *testing.T) {
	args := NewH264(0, "").Args()
	joined := strings.Join(args, " ")
	require.Contains(t, joined, "-crf 23")
	require.Contains(t, joined, "-preset medium")
}

func TestVP9AlphaArgs(t *testing.T) {
	args := NewVP9Alpha(0, 0).Args()
	joined := strings.Join(args, " ")

	require.Contains(t, joined, "-c:v libvpx-vp9")
	require.Contains(t, joined, "-pix_fmt yuva420p")
	require.Contains(t, joined, "-auto-alt-ref 0")
	require.Contains(t, joined, "-c:a libopus")
}

func TestProResArgs(t *testing.T) {
	args := NewProRes4444().Args()
	joined := strings.Join(args, " ")
	require.Contains(t, joined, "prores_ks")
	require.Contains(t, joined, "-profile:v 4444")
	require.Contains(t, joined, "yuva444p10le")
}

func TestGIFArgs(t *testing.T) {
	args := NewGIF(15).Args()
	require.Equal(t, []string{"-r", "15", "-f", "gif"}, args)
}

func TestArgsArePure(t *testing.T) {
	p := NewStacked(LayoutVertical, 20)
	require.Equal(t, p.Args(), p.Args())
}

func TestPreservesAlpha(t *testing.T) {
	require.True(t, NewVP9Alpha(30, 2).PreservesAlpha())
	require.True(t, NewProRes4444().PreservesAlpha())
	require.False(t, NewH264(23, "medium").PreservesAlpha())
	require.False(t, NewGIF(12).PreservesAlpha())
}

func TestNoOutputPathToken(t *testing.T) {
	for _, p := range []Profile{NewH264(23, "medium"), NewVP9Alpha(30, 2), NewProRes4444(), NewGIF(12)} {
		for _, a := range p.Args() {
			require.NotContains(t, a, ".mp4")
			require.NotContains(t, a, ".webm")
		}
	}
}
