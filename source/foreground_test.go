package source

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/peelkit/matte/graph"
	"github.com/peelkit/matte/mediactx"
	"github.com/peelkit/matte/probe"
)

func TestFromFileInference(t *testing.T) {
	setupOfflineContext(t)

	tests := []struct {
		path   string
		format Format
	}{
		{"clip.webm", FormatAlphaWebM},
		{"clip.MOV", FormatAlphaMov},
		{"clip.mp4", FormatStacked},
		{"clip.m4v", FormatStacked},
		{"clip.mkv", FormatStacked},
		{"clip.avi", FormatStacked},
	}
	for _, tt := range tests {
		f, err := FromFile(tt.path)
		require.NoError(t, err, tt.path)
		require.Equal(t, tt.format, f.Format, tt.path)
	}
}

func TestFromFileRejectsUnknownExtension(t *testing.T) {
	setupOfflineContext(t)

	_, err := FromFile("clip.txt")
	require.Error(t, err)
	require.Contains(t, err.Error(), ".webm")
	require.Contains(t, err.Error(), ".zip")
}

func TestNewPairRequiresMask(t *testing.T) {
	setupOfflineContext(t)

	_, err := NewPair("color.mp4", "", "")
	require.Error(t, err)

	f, err := NewPair("color.mp4", "mask.mp4", "")
	require.NoError(t, err)
	require.Equal(t, FormatPair, f.Format)
}

func TestSubclipCopyOnWriteAndOverwrite(t *testing.T) {
	setupOfflineContext(t)

	orig := NewAlphaWebM("clip.webm")
	a := orig.Subclip(1, 2)
	b := a.Subclip(2, 5)

	require.Nil(t, orig.Trim)
	require.Equal(t, Span{Start: 1, End: 2}, *a.Trim)
	require.Equal(t, Span{Start: 2, End: 5}, *b.Trim)
}

func TestSoftAlphaCopyOnWrite(t *testing.T) {
	setupOfflineContext(t)

	orig, err := NewPair("color.mp4", "mask.mp4", "")
	require.NoError(t, err)

	soft := orig.SoftAlpha(true)
	require.False(t, orig.SoftMask)
	require.True(t, soft.SoftMask)
}

func TestEffectiveDuration(t *testing.T) {
	setupOfflineContext(t)

	f := NewStacked("clip.mp4")
	f.Info = &probe.Info{Codec: "h264", Duration: 12}

	require.Equal(t, 12.0, f.EffectiveDuration())
	require.Equal(t, 4.0, f.Subclip(3, 7).EffectiveDuration())
	require.Equal(t, 9.0, f.Subclip(3, 0).EffectiveDuration())
}

func TestInputsPerFormat(t *testing.T) {
	setupOfflineContext(t)
	mc := mediactx.Current()

	webm := NewAlphaWebM("fg.webm")
	ins := webm.Inputs("layer_0", mc)
	require.Len(t, ins, 1)
	require.Equal(t, "layer_0", ins[0].Name)
	require.Equal(t, []string{"-i", "fg.webm"}, ins[0].Args)

	pair, err := NewPair("c.mp4", "a.mp4", "s.mp3")
	require.NoError(t, err)
	ins = pair.Inputs("layer_1", mc)
	require.Len(t, ins, 3)
	require.Equal(t, "layer_1_rgb", ins[0].Name)
	require.Equal(t, "layer_1_mask", ins[1].Name)
	require.Equal(t, "layer_1_audio", ins[2].Name)

	stacked := NewStacked("fg.mp4").Subclip(1, 3)
	ins = stacked.Inputs("layer_2", mc)
	require.Len(t, ins, 1)
	require.Equal(t, "layer_2_stacked", ins[0].Name)
	require.Equal(t, []string{"-ss", "1", "-t", "2", "-i", "fg.mp4"}, ins[0].Args)
}

func TestPairTrimAppliesToEveryInput(t *testing.T) {
	setupOfflineContext(t)

	pair, err := NewPair("c.mp4", "a.mp4", "s.mp3")
	require.NoError(t, err)

	for _, in := range pair.Subclip(2, 4).Inputs("layer_0", mediactx.Current()) {
		joined := strings.Join(in.Args, " ")
		require.Contains(t, joined, "-ss 2", in.Name)
		require.Contains(t, joined, "-t 2", in.Name)
	}
}

func TestAudioInput(t *testing.T) {
	setupOfflineContext(t)

	pair, err := NewPair("c.mp4", "a.mp4", "s.mp3")
	require.NoError(t, err)
	name, ok := pair.AudioInput("layer_0")
	require.True(t, ok)
	require.Equal(t, "layer_0_audio", name)

	silent := NewStacked("fg.mp4")
	_, ok = silent.AudioInput("layer_1")
	require.False(t, ok)

	withTrack := NewAlphaWebM("fg.webm")
	withTrack.Info = &probe.Info{Codec: "vp9", HasAudio: true}
	name, ok = withTrack.AudioInput("layer_2")
	require.True(t, ok)
	require.Equal(t, "layer_2", name)
}

func fixedIndex(m map[string]int) func(string) int {
	return func(name string) int { return m[name] }
}

func TestNormalizePairHardMatte(t *testing.T) {
	setupOfflineContext(t)

	pair, err := NewPair("c.mp4", "a.mp4", "")
	require.NoError(t, err)

	g := graph.New()
	out := pair.Normalize(g, fixedIndex(map[string]int{"layer_0_rgb": 1, "layer_0_mask": 2}), "layer_0", true)

	s := g.String()
	require.Contains(t, s, "[1:v]format=rgba")
	require.Contains(t, s, "[2:v]format=gray")
	require.Contains(t, s, "geq="+thresholdExpr)
	require.Contains(t, s, "alphamerge")
	require.Equal(t, graph.Video, out.Kind)
}

func TestNormalizePairSoftMatteSkipsThreshold(t *testing.T) {
	setupOfflineContext(t)

	pair, err := NewPair("c.mp4", "a.mp4", "")
	require.NoError(t, err)

	g := graph.New()
	pair.SoftAlpha(true).Normalize(g, fixedIndex(map[string]int{"layer_0_rgb": 1, "layer_0_mask": 2}), "layer_0", true)

	require.NotContains(t, g.String(), "geq")
	require.Contains(t, g.String(), "alphamerge")
}

func TestNormalizeStackedCropsAndThresholds(t *testing.T) {
	setupOfflineContext(t)

	g := graph.New()
	NewStacked("fg.mp4").Normalize(g, fixedIndex(map[string]int{"layer_0_stacked": 1}), "layer_0", true)

	s := g.String()
	require.Contains(t, s, "split")
	require.Contains(t, s, "crop=iw:ih/2:0:0")
	require.Contains(t, s, "crop=iw:ih/2:0:ih/2")
	require.Contains(t, s, "geq="+thresholdExpr)
	require.NoError(t, g.Validate())
}

func TestNormalizeAlphaDisabledStripsMatte(t *testing.T) {
	setupOfflineContext(t)

	g := graph.New()
	out := NewAlphaWebM("fg.webm").Normalize(g, fixedIndex(map[string]int{"layer_0": 1}), "layer_0", false)
	require.Contains(t, g.String(), "[1:v]format=rgb24")
	require.Equal(t, graph.Video, out.Kind)

	g = graph.New()
	NewStacked("fg.mp4").Normalize(g, fixedIndex(map[string]int{"layer_0_stacked": 1}), "layer_0", false)
	require.NotContains(t, g.String(), "alphamerge")
	require.Contains(t, g.String(), "crop=iw:ih/2:0:0")
}

func writeTestArchive(t *testing.T, members map[string][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "result.zip")
	out, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(out)
	for name, data := range members {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())
	return path
}

func TestFromArchive(t *testing.T) {
	setupOfflineContext(t)

	archive := writeTestArchive(t, map[string][]byte{
		ArchiveColorName: []byte("color"),
		ArchiveAlphaName: []byte("alpha"),
		ArchiveAudioName: []byte("audio"),
	})

	f, err := FromArchive(archive)
	require.NoError(t, err)
	require.Equal(t, FormatPair, f.Format)
	require.Equal(t, ArchiveColorName, filepath.Base(f.Source))
	require.Equal(t, ArchiveAlphaName, filepath.Base(f.MaskSource))
	require.Equal(t, ArchiveAudioName, filepath.Base(f.AudioSource))
}

func TestFromArchiveOptionalAudio(t *testing.T) {
	setupOfflineContext(t)

	archive := writeTestArchive(t, map[string][]byte{
		ArchiveColorName: []byte("color"),
		ArchiveAlphaName: []byte("alpha"),
	})

	f, err := FromArchive(archive)
	require.NoError(t, err)
	require.Empty(t, f.AudioSource)
}

func TestFromArchiveMissingMember(t *testing.T) {
	setupOfflineContext(t)

	archive := writeTestArchive(t, map[string][]byte{
		ArchiveColorName: []byte("color"),
	})

	_, err := FromArchive(archive)
	require.Error(t, err)
	require.Contains(t, err.Error(), ArchiveAlphaName)
}
