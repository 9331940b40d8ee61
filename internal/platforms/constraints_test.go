package platforms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	p, err := Parse(" TikTok ")
	require.NoError(t, err)
	assert.Equal(t, TikTok, p)

	_, err = Parse("myspace")
	assert.Error(t, err)

	_, err = Parse("")
	assert.Error(t, err)
}

func TestConstraintsCoverAllPlatforms(t *testing.T) {
	for _, p := range All() {
		c, ok := ConstraintsFor(p)
		require.True(t, ok, "missing constraints for %s", p)
		assert.Greater(t, c.MaxTextChars, 0)
		assert.Greater(t, c.MaxMediaCount, 0)
	}
}

func TestConstraintValues(t *testing.T) {
	fb, _ := ConstraintsFor(Facebook)
	assert.Equal(t, 63206, fb.MaxTextChars)
	assert.Equal(t, 10, fb.MaxMediaCount)
	assert.False(t, fb.RequiresMedia)

	ig, _ := ConstraintsFor(Instagram)
	assert.Equal(t, 2200, ig.MaxTextChars)
	assert.True(t, ig.RequiresMedia)

	tw, _ := ConstraintsFor(Twitter)
	assert.Equal(t, 280, tw.MaxTextChars)
	assert.Equal(t, 4, tw.MaxImages)
	assert.Equal(t, 1, tw.MaxVideos)
	assert.False(t, tw.AllowMixedMedia)

	tk, _ := ConstraintsFor(TikTok)
	assert.True(t, tk.VideosOnly)
	assert.True(t, tk.RequiresMedia)
	assert.Equal(t, 1, tk.MaxMediaCount)

	am, _ := ConstraintsFor(Amazon)
	assert.True(t, am.ImagesOnly)
	assert.True(t, am.RequiresMedia)
}

func TestMimeSupport(t *testing.T) {
	tw, _ := ConstraintsFor(Twitter)
	assert.True(t, tw.SupportsImageMime("image/png"))
	assert.False(t, tw.SupportsVideoMime("video/webm"))

	tk, _ := ConstraintsFor(TikTok)
	assert.True(t, tk.SupportsVideoMime("video/mp4"))
	assert.False(t, tk.SupportsImageMime("image/jpeg"))
}
