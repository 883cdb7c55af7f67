package news

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGuildAPI struct {
	docs  map[string]map[string]interface{}
	err   error
	calls int
}

func (f *fakeGuildAPI) GuildNews(_ context.Context, realm, guild string) (map[string]interface{}, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.docs[realm+"/"+guild], nil
}

type posted struct {
	webhookURL string
	message    map[string]interface{}
}

type fakePoster struct {
	mu     sync.Mutex
	posted []posted
}

func (f *fakePoster) Post(_ context.Context, webhookURL string, message map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, posted{webhookURL: webhookURL, message: message})
	return nil
}

func (f *fakePoster) all() []posted {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]posted(nil), f.posted...)
}

func guildDoc(lastModified int64, news ...map[string]interface{}) map[string]interface{} {
	items := make([]interface{}, len(news))
	for i, n := range news {
		items[i] = n
	}
	return map[string]interface{}{
		"name":         "The Fellowship",
		"realm":        "Khaz'goroth",
		"side":         float64(0),
		"lastModified": float64(lastModified),
		"news":         items,
	}
}

func achievementItem(itemType, character string, timestamp int64) map[string]interface{} {
	item := map[string]interface{}{
		"type":      itemType,
		"timestamp": float64(timestamp),
		"achievement": map[string]interface{}{
			"id":          float64(1234),
			"title":       "Ahead of the Curve",
			"description": "Defeat the final boss before the next raid opens.",
			"points":      float64(10),
			"icon":        "achievement_raid",
		},
	}
	if character != "" {
		item["character"] = character
	}
	return item
}

func newTestCollector(t *testing.T, api GuildAPI, poster Poster) *Collector {
	t.Helper()
	guilds := []GuildConfig{{
		Key:        "fellowship",
		Realm:      "khazgoroth",
		Name:       "the fellowship",
		WebhookURL: "http://hooks.example.com/fellowship",
	}}
	return NewCollector(api, poster, guilds, t.TempDir(), slog.New(slog.DiscardHandler))
}

func writeRunFileFor(t *testing.T, c *Collector, key string, ts int64) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(c.runDir, key), []byte(strconv.FormatInt(ts, 10)), 0o644))
}

func TestCollector_AnnouncesNewItems(t *testing.T) {
	api := &fakeGuildAPI{docs: map[string]map[string]interface{}{
		"khazgoroth/the fellowship": guildDoc(2000,
			achievementItem("playerAchievement", "Vengel", 1500),
			achievementItem("guildAchievement", "", 1800),
		),
	}}
	poster := &fakePoster{}
	c := newTestCollector(t, api, poster)
	writeRunFileFor(t, c, "fellowship", 1000)

	c.Poll(context.Background())

	got := poster.all()
	require.Len(t, got, 2)
	assert.Equal(t, "http://hooks.example.com/fellowship", got[0].webhookURL)
	assert.Equal(t, "Vengel earned achievement Ahead of the Curve for 10 points", got[0].message["content"])
	assert.Equal(t, "The Fellowship earned achievement Ahead of the Curve for 10 points", got[1].message["content"])

	// high-water mark advances to the armory's lastModified
	ts, err := c.readRunFile("fellowship")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), ts)
}

func TestCollector_SkipsOldAndUninterestingItems(t *testing.T) {
	api := &fakeGuildAPI{docs: map[string]map[string]interface{}{
		"khazgoroth/the fellowship": guildDoc(2000,
			achievementItem("playerAchievement", "Vengel", 900), // older than mark
			map[string]interface{}{"type": "itemLoot", "timestamp": float64(1900)},
		),
	}}
	poster := &fakePoster{}
	c := newTestCollector(t, api, poster)
	writeRunFileFor(t, c, "fellowship", 1000)

	c.Poll(context.Background())

	assert.Empty(t, poster.all())
}

func TestCollector_FirstRunInitialisesWithoutReplay(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	api := &fakeGuildAPI{docs: map[string]map[string]interface{}{
		"khazgoroth/the fellowship": guildDoc(now.Unix()*1000+5000,
			achievementItem("playerAchievement", "Vengel", now.Unix()*1000-60000),
		),
	}}
	poster := &fakePoster{}
	c := newTestCollector(t, api, poster)
	c.now = func() time.Time { return now }

	c.Poll(context.Background())

	// history before the first run is never announced
	assert.Empty(t, poster.all())

	ts, err := c.readRunFile("fellowship")
	require.NoError(t, err)
	assert.Equal(t, now.Unix()*1000+5000, ts)
}

func TestCollector_EmbedPayload(t *testing.T) {
	api := &fakeGuildAPI{docs: map[string]map[string]interface{}{
		"khazgoroth/the fellowship": guildDoc(2000,
			achievementItem("playerAchievement", "Vengel", 1500),
		),
	}}
	poster := &fakePoster{}
	c := newTestCollector(t, api, poster)
	writeRunFileFor(t, c, "fellowship", 1000)

	c.Poll(context.Background())

	got := poster.all()
	require.Len(t, got, 1)

	embeds := got[0].message["embeds"].([]map[string]interface{})
	require.Len(t, embeds, 1)
	assert.Equal(t, "Ahead of the Curve", embeds[0]["title"])
	assert.Equal(t, "http://www.wowhead.com/achievement=1234", embeds[0]["url"])

	thumbnail := embeds[0]["thumbnail"].(map[string]interface{})
	assert.Equal(t, "http://wow.zamimg.com/images/wow/icons/large/achievement_raid.jpg", thumbnail["url"])
}

func TestCollector_FetchFailureKeepsRunFile(t *testing.T) {
	api := &fakeGuildAPI{err: fmt.Errorf("armory down")}
	poster := &fakePoster{}
	c := newTestCollector(t, api, poster)
	writeRunFileFor(t, c, "fellowship", 1000)

	c.Poll(context.Background())

	ts, err := c.readRunFile("fellowship")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), ts)
	assert.Empty(t, poster.all())
}
