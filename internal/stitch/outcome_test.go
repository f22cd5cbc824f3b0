package stitch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/leafstitch/internal/testutil"
)

func TestOutcomeVariants(t *testing.T) {
	img := testutil.SolidSegment(2, 2, testutil.LeafTissue)

	t.Run("success", func(t *testing.T) {
		out := Success(img)
		assert.Equal(t, KindSuccess, out.Kind)
		assert.True(t, out.Terminal())
		require.NoError(t, out.Err())
		assert.Same(t, img, out.Image)
	})

	t.Run("error", func(t *testing.T) {
		out := Errorf("bad segment %d", 3)
		assert.Equal(t, KindError, out.Kind)
		assert.True(t, out.Terminal())
		require.EqualError(t, out.Err(), "bad segment 3")
	})

	t.Run("progress", func(t *testing.T) {
		out := Progress(2, 5)
		assert.Equal(t, KindProgress, out.Kind)
		assert.False(t, out.Terminal())
		assert.Equal(t, 2, out.Pair)
		assert.Equal(t, 5, out.Total)
		require.NoError(t, out.Err())
	})
}
