package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworks/stratd/internal/field"
	"github.com/fieldworks/stratd/internal/objective"
)

func testGlasses(t *testing.T) [objective.GlassCount]objective.Glass {
	t.Helper()
	return objective.NewBoard(field.ColorRed, true).Glasses()
}

func testGifts(t *testing.T) [objective.GiftCount]objective.Gift {
	t.Helper()
	return objective.NewBoard(field.ColorRed, true).Gifts()
}

func TestNearestSelector_NextGlass(t *testing.T) {
	glasses := testGlasses(t)

	t.Run("picks nearest to position", func(t *testing.T) {
		// Standing right on glass 11 at (900, 550).
		idx, ok := NearestSelector{}.NextGlass(glasses, field.Point{X: 900, Y: 550}, nil)
		require.True(t, ok)
		assert.Equal(t, 11, idx)
	})

	t.Run("skips taken glasses", func(t *testing.T) {
		g := glasses
		g[11].Taken = true
		idx, ok := NearestSelector{}.NextGlass(g, field.Point{X: 900, Y: 550}, nil)
		require.True(t, ok)
		assert.NotEqual(t, 11, idx)
	})

	t.Run("skips abandoned glasses", func(t *testing.T) {
		idx, ok := NearestSelector{}.NextGlass(glasses, field.Point{X: 900, Y: 550}, map[int]bool{11: true})
		require.True(t, ok)
		assert.NotEqual(t, 11, idx)
	})

	t.Run("lower index wins ties", func(t *testing.T) {
		// Glasses 5 (1200,1050) and 6 (1200,950) are equidistant from
		// the midpoint between them.
		idx, ok := NearestSelector{}.NextGlass(glasses, field.Point{X: 1200, Y: 1000}, nil)
		require.True(t, ok)
		assert.Equal(t, 5, idx)
	})

	t.Run("no eligible glass", func(t *testing.T) {
		g := glasses
		for i := range g {
			g[i].Taken = true
		}
		_, ok := NearestSelector{}.NextGlass(g, field.Point{X: 0, Y: 0}, nil)
		assert.False(t, ok)
	})
}

func TestNearestSelector_NextGift(t *testing.T) {
	gifts := testGifts(t)

	t.Run("picks nearest by X", func(t *testing.T) {
		idx, ok := NearestSelector{}.NextGift(gifts, 1700, nil)
		require.True(t, ok)
		assert.Equal(t, 2, idx)
	})

	t.Run("skips done and abandoned", func(t *testing.T) {
		g := gifts
		g[2].Done = true
		idx, ok := NearestSelector{}.NextGift(g, 1700, map[int]bool{1: true})
		require.True(t, ok)
		assert.Equal(t, 3, idx)
	})

	t.Run("no eligible gift", func(t *testing.T) {
		g := gifts
		for i := range g {
			g[i].Done = true
		}
		_, ok := NearestSelector{}.NextGift(g, 0, nil)
		assert.False(t, ok)
	})
}

func TestFixedOrderSelector(t *testing.T) {
	glasses := testGlasses(t)
	gifts := testGifts(t)

	idx, ok := FixedOrderSelector{}.NextGlass(glasses, field.Point{X: 3000, Y: 2000}, nil)
	require.True(t, ok)
	assert.Equal(t, 0, idx, "index order ignores distance")

	glasses[0].Taken = true
	idx, ok = FixedOrderSelector{}.NextGlass(glasses, field.Point{}, map[int]bool{1: true})
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	idx, ok = FixedOrderSelector{}.NextGift(gifts, 2400, nil)
	require.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestSelectorByName(t *testing.T) {
	assert.IsType(t, FixedOrderSelector{}, SelectorByName("fixed"))
	assert.IsType(t, NearestSelector{}, SelectorByName("nearest"))
	assert.IsType(t, NearestSelector{}, SelectorByName(""))
}
