package compose

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScaleSpecPerMode(t *testing.T) {
	tests := []struct {
		name   string
		size   sizing
		spec   string
		hasBox bool
	}{
		{"contain", sizing{Mode: SizeContain}, "1920:1080:force_original_aspect_ratio=decrease", false},
		{"cover", sizing{Mode: SizeCover}, "1920:1080:force_original_aspect_ratio=increase", false},
		{"pixels", sizing{Mode: SizePixels, Width: 640, Height: 360}, "640:360:force_original_aspect_ratio=decrease", false},
		{"percent", sizing{Mode: SizePercent, PercentW: 50, PercentH: 50}, "960:540:force_original_aspect_ratio=decrease", true},
		{"percent one axis", sizing{Mode: SizePercent, PercentW: 25}, "480:1080:force_original_aspect_ratio=decrease", true},
		{"fit width", sizing{Mode: SizeFitWidth}, "1920:-1", false},
		{"fit height", sizing{Mode: SizeFitHeight}, "-1:1080", false},
		{"scale uniform", sizing{Mode: SizeScale, ScaleX: 0.5}, "iw*0.5:ih*0.5", false},
		{"scale per axis", sizing{Mode: SizeScale, ScaleX: 2, ScaleY: 0.5}, "iw*2:ih*0.5", false},
		{"scale unset", sizing{Mode: SizeScale}, "iw*1:ih*1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, _, _, hasBox := tt.size.scaleSpec(1920, 1080)
			require.Equal(t, tt.spec, spec)
			require.Equal(t, tt.hasBox, hasBox)

			// pure function of its inputs
			again, _, _, _ := tt.size.scaleSpec(1920, 1080)
			require.Equal(t, spec, again)
		})
	}
}

func TestPercentBoxDimensionsFloor(t *testing.T) {
	_, boxW, boxH, hasBox := sizing{Mode: SizePercent, PercentW: 33, PercentH: 33}.scaleSpec(1920, 1080)
	require.True(t, hasBox)
	require.Equal(t, 633, boxW)
	require.Equal(t, 356, boxH)
}

func TestPlacementAnchors(t *testing.T) {
	tests := []struct {
		anchor Anchor
		x, y   string
	}{
		{AnchorTopLeft, "0", "0"},
		{AnchorTop, "(W-w)/2", "0"},
		{AnchorTopRight, "W-w", "0"},
		{AnchorLeft, "0", "(H-h)/2"},
		{AnchorCenter, "(W-w)/2", "(H-h)/2"},
		{AnchorRight, "W-w", "(H-h)/2"},
		{AnchorBottomLeft, "0", "H-h"},
		{AnchorBottom, "(W-w)/2", "H-h"},
		{AnchorBottomRight, "W-w", "H-h"},
	}
	for _, tt := range tests {
		x, y := placement(tt.anchor, 0, 0, 1920, 1080, 0, 0, false)
		require.Equal(t, tt.x, x)
		require.Equal(t, tt.y, y)
	}
}

func TestPlacementOffsets(t *testing.T) {
	x, y := placement(AnchorCenter, 10, -20, 1920, 1080, 0, 0, false)
	require.Equal(t, "(W-w)/2+10", x)
	require.Equal(t, "(H-h)/2-20", y)

	x, y = placement(AnchorTopLeft, 15, 25, 1920, 1080, 0, 0, false)
	require.Equal(t, "15", x)
	require.Equal(t, "25", y)
}

func TestPlacementPercentBoxAlignment(t *testing.T) {
	// 50% box on a 1920x1080 canvas is 960x540; the content realigns
	// inside the box per the anchor.
	x, y := placement(AnchorCenter, 0, 0, 1920, 1080, 960, 540, true)
	require.Equal(t, "480+(960-w)/2", x)
	require.Equal(t, "270+(540-h)/2", y)

	x, y = placement(AnchorBottomRight, -10, -10, 1920, 1080, 960, 540, true)
	require.Equal(t, "950+960-w", x)
	require.Equal(t, "530+540-h", y)

	x, y = placement(AnchorTopLeft, 0, 0, 1920, 1080, 960, 540, true)
	require.Equal(t, "0", x)
	require.Equal(t, "0", y)
}
