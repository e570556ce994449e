package geo

import (
	"math/rand/v2"
	"testing"

	"github.com/MeKo-Tech/cldfoffline/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBoundingBoxEmpty(t *testing.T) {
	_, err := ComputeBoundingBox(nil)
	require.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = ComputeBoundingBox([]types.Coordinate{})
	require.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestComputeBoundingBoxSameSide(t *testing.T) {
	box, err := ComputeBoundingBox([]types.Coordinate{
		{Lat: 4.32, Lon: -92.62},
		{Lat: -26.75, Lon: -102.79},
	})
	require.NoError(t, err)

	assert.Equal(t, 4.32, box.North)
	assert.Equal(t, -26.75, box.South)
	assert.Equal(t, -102.79, box.West)
	assert.Equal(t, -92.62, box.East)
	assert.False(t, box.CrossesAntimeridian())
}

func TestComputeBoundingBoxEasternHemisphere(t *testing.T) {
	box, err := ComputeBoundingBox([]types.Coordinate{
		{Lat: 52.3, Lon: 9.7},
		{Lat: 48.1, Lon: 11.5},
		{Lat: 53.5, Lon: 10.0},
	})
	require.NoError(t, err)

	assert.Equal(t, types.BoundingBox{North: 53.5, West: 9.7, South: 48.1, East: 11.5}, box)
}

func TestComputeBoundingBoxAntimeridian(t *testing.T) {
	points := []types.Coordinate{
		{Lat: -17.7, Lon: 178},
		{Lat: -13.8, Lon: -178},
	}
	box, err := ComputeBoundingBox(points)
	require.NoError(t, err)

	assert.True(t, box.CrossesAntimeridian(), "expected wrapped box, got %s", box)
	assert.Equal(t, 178.0, box.West)
	assert.Equal(t, -178.0, box.East)
	assert.InDelta(t, 4.0, box.Width(), 1e-9)
	for _, p := range points {
		assert.True(t, box.Contains(p), "%s not inside %s", p, box)
	}
}

func TestComputeBoundingBoxStraddlingNullMeridian(t *testing.T) {
	points := []types.Coordinate{
		{Lat: 6.11, Lon: -10.45},
		{Lat: 5.0, Lon: 6.11},
	}
	box, err := ComputeBoundingBox(points)
	require.NoError(t, err)

	assert.False(t, box.CrossesAntimeridian())
	assert.Equal(t, -10.45, box.West)
	assert.Equal(t, 6.11, box.East)
	for _, p := range points {
		assert.True(t, box.Contains(p), "%s not inside %s", p, box)
	}
}

func TestComputeBoundingBoxPrefersNarrowerSpan(t *testing.T) {
	// Pacific points on both sides of 0° but far from it: the dateline span is narrower.
	points := []types.Coordinate{
		{Lat: 10, Lon: 150},
		{Lat: 20, Lon: -150},
		{Lat: 0, Lon: 170},
	}
	box, err := ComputeBoundingBox(points)
	require.NoError(t, err)

	assert.Equal(t, 150.0, box.West)
	assert.Equal(t, -150.0, box.East)
	assert.InDelta(t, 60.0, box.Width(), 1e-9)
}

func TestComputeBoundingBoxNormalizesInput(t *testing.T) {
	box, err := ComputeBoundingBox([]types.Coordinate{
		{Lat: 89.9, Lon: 370},
		{Lat: -95, Lon: 365},
	})
	require.NoError(t, err)

	assert.Equal(t, MaxLatitude, box.North)
	assert.Equal(t, -MaxLatitude, box.South)
	assert.InDelta(t, 5.0, box.West, 1e-9)
	assert.InDelta(t, 10.0, box.East, 1e-9)
}

func TestComputeBoundingBoxSinglePoint(t *testing.T) {
	box, err := ComputeBoundingBox([]types.Coordinate{{Lat: 1, Lon: 2}})
	require.NoError(t, err)
	assert.Equal(t, types.BoundingBox{North: 1, West: 2, South: 1, East: 2}, box)
}

// Every input point must lie inside the computed box, whatever the tie-break
// between the two candidate spans decided.
func TestComputeBoundingBoxContainsAllPoints(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 42))

	for i := 0; i < 2000; i++ {
		n := 1 + rng.IntN(6)
		points := make([]types.Coordinate, n)
		for j := range points {
			points[j] = types.Coordinate{
				Lat: rng.Float64()*170 - 85,
				Lon: rng.Float64()*360 - 180,
			}
		}

		box, err := ComputeBoundingBox(points)
		require.NoError(t, err)
		require.GreaterOrEqual(t, box.North, box.South)

		for _, p := range points {
			require.True(t, box.Contains(p), "case %d: %s not inside %s", i, p, box)
		}

		// The result is never wider than the plain min..max span.
		lons := make([]float64, n)
		for j, p := range points {
			lons[j] = p.Lon
		}
		plain := types.BoundingBox{West: minOf(lons), East: maxOf(lons)}
		require.LessOrEqual(t, box.Width(), plain.Width()+1e-9, "case %d", i)
	}
}

func TestPadBox(t *testing.T) {
	box := types.BoundingBox{North: 80, West: 175, South: -10, East: -179}

	padded := PadBox(box, 10)
	assert.Equal(t, MaxLatitude, padded.North)
	assert.Equal(t, -20.0, padded.South)
	assert.Equal(t, 165.0, padded.West)
	assert.Equal(t, -169.0, padded.East)

	// Padding can push a plain box across the antimeridian.
	plain := types.BoundingBox{North: 1, West: 170, South: -1, East: 178}
	padded = PadBox(plain, 5)
	assert.Equal(t, 165.0, padded.West)
	assert.Equal(t, -177.0, padded.East)
	assert.True(t, padded.CrossesAntimeridian())
}

func TestPadBoxWiderThanWorld(t *testing.T) {
	tests := []struct {
		name string
		box  types.BoundingBox
		pad  float64
	}{
		{"plain box", types.BoundingBox{North: 10, West: -179, South: -10, East: 179}, 5},
		{"wrapping box", types.BoundingBox{North: 10, West: 10, South: -10, East: 5}, 3},
		{"exactly 360", types.BoundingBox{North: 10, West: -170, South: -10, East: 170}, 10},
		{"huge padding", types.BoundingBox{North: 0, West: 0, South: 0, East: 1}, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			padded := PadBox(tt.box, tt.pad)
			assert.Equal(t, -180.0, padded.West)
			assert.Equal(t, 180.0, padded.East)
			assert.False(t, padded.CrossesAntimeridian())
			assert.Equal(t, ClampLatitude(tt.box.North+tt.pad), padded.North)
			assert.Equal(t, ClampLatitude(tt.box.South-tt.pad), padded.South)
		})
	}

	// Just below a full turn the edges stay apart.
	padded := PadBox(types.BoundingBox{North: 1, West: -170, South: -1, East: 170}, 9.5)
	assert.Equal(t, -179.5, padded.West)
	assert.Equal(t, 179.5, padded.East)
}

func TestPadBoxNeverShrinks(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for i := 0; i < 1000; i++ {
		points := make([]types.Coordinate, 1+rng.IntN(5))
		for j := range points {
			points[j] = types.Coordinate{Lat: rng.Float64()*160 - 80, Lon: rng.Float64()*360 - 180}
		}
		box, err := ComputeBoundingBox(points)
		require.NoError(t, err)

		pad := rng.Float64() * 200
		padded := PadBox(box, pad)
		for _, p := range points {
			require.True(t, padded.Contains(p), "case %d: %s outside %s padded by %f", i, p, box, pad)
		}
	}
}

func minOf(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		m = min(m, x)
	}
	return m
}

func maxOf(v []float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		m = max(m, x)
	}
	return m
}
