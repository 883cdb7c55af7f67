package jobs

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mountsDoc(lastModified time.Time) map[string]interface{} {
	return map[string]interface{}{
		"name":         "Vengel",
		"realm":        "Khaz'goroth",
		"faction":      float64(0),
		"thumbnail":    "internal-record-3679/66/vengel-avatar.jpg",
		"lastModified": float64(lastModified.UnixMilli()),
		"mounts": map[string]interface{}{
			"numCollected":    float64(120),
			"numNotCollected": float64(300),
		},
	}
}

func newMountsLookup(t *testing.T, api CharacterAPI) *MountsLookup {
	t.Helper()
	return NewMountsLookup(api, t.TempDir(), "khazgoroth", slog.New(slog.DiscardHandler))
}

func TestMountsLookup_Run(t *testing.T) {
	api := &fakeAPI{mounts: mountsDoc(time.Now())}
	lookup := newMountsLookup(t, api)

	result, err := lookup.Run(context.Background(), map[string]interface{}{"character": "vengel"})
	require.NoError(t, err)

	assert.Equal(t, 1, api.mountsCalls)
	assert.Equal(t, float64(120), result["collected"])
	assert.Equal(t, float64(300), result["uncollected"])
	assert.Equal(t, ColourAlliance, result["colour"])

	// the fetched document lands in the cache
	_, err = os.Stat(filepath.Join(lookup.cacheDir, "khazgoroth_vengel_mounts.json"))
	assert.NoError(t, err)
}

func TestMountsLookup_ServesFromFreshCache(t *testing.T) {
	// An idle character's document carries an old lastModified. Freshness is
	// measured from when the cache file was written, so the second lookup is
	// still a hit.
	api := &fakeAPI{mounts: mountsDoc(time.Now().Add(-time.Hour))}
	lookup := newMountsLookup(t, api)
	ctx := context.Background()
	body := map[string]interface{}{"character": "vengel"}

	_, err := lookup.Run(ctx, body)
	require.NoError(t, err)

	_, err = lookup.Run(ctx, body)
	require.NoError(t, err)
	assert.Equal(t, 1, api.mountsCalls, "second lookup should not hit the API")
}

func TestMountsLookup_RefreshesStaleCache(t *testing.T) {
	api := &fakeAPI{mounts: mountsDoc(time.Now())}
	lookup := newMountsLookup(t, api)
	ctx := context.Background()
	body := map[string]interface{}{"character": "vengel"}

	_, err := lookup.Run(ctx, body)
	require.NoError(t, err)

	lookup.now = func() time.Time { return time.Now().Add(11 * time.Minute) }

	_, err = lookup.Run(ctx, body)
	require.NoError(t, err)
	assert.Equal(t, 2, api.mountsCalls)
}

func TestMountsLookup_IgnoresMalformedCache(t *testing.T) {
	api := &fakeAPI{mounts: mountsDoc(time.Now())}
	lookup := newMountsLookup(t, api)

	cacheFile := filepath.Join(lookup.cacheDir, "khazgoroth_vengel_mounts.json")
	require.NoError(t, os.WriteFile(cacheFile, []byte("{not json"), 0o644))

	_, err := lookup.Run(context.Background(), map[string]interface{}{"character": "vengel"})
	require.NoError(t, err)
	assert.Equal(t, 1, api.mountsCalls)
}

func TestMountsLookup_UpstreamError(t *testing.T) {
	api := &fakeAPI{mountsErr: errUpstream}
	lookup := newMountsLookup(t, api)

	_, err := lookup.Run(context.Background(), map[string]interface{}{"character": "vengel"})
	require.Error(t, err)
}

func TestMountsLookup_MissingMountsField(t *testing.T) {
	doc := mountsDoc(time.Now())
	delete(doc, "mounts")
	api := &fakeAPI{mounts: doc}
	lookup := newMountsLookup(t, api)

	_, err := lookup.Run(context.Background(), map[string]interface{}{"character": "vengel"})
	require.Error(t, err)
}
