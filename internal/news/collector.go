// Package news polls the armory for guild news and announces fresh
// achievements to each guild's webhook. The high-water timestamp for every
// guild lives in a run file so restarts never replay old items.
package news

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// GuildAPI is the armory surface the collector needs.
// Implemented by *armory.Client.
type GuildAPI interface {
	GuildNews(ctx context.Context, realm, guild string) (map[string]interface{}, error)
}

// Poster delivers an announcement payload to a webhook URL
type Poster interface {
	Post(ctx context.Context, webhookURL string, message map[string]interface{}) error
}

// GuildConfig names one guild to watch and where its announcements go
type GuildConfig struct {
	Key        string // run file name, unique per guild
	Realm      string
	Name       string
	WebhookURL string
}

// Collector polls configured guilds and announces new achievements
type Collector struct {
	api    GuildAPI
	poster Poster
	guilds []GuildConfig
	runDir string
	logger *slog.Logger

	// swapped out in tests
	now func() time.Time
}

// NewCollector creates a guild news collector
func NewCollector(api GuildAPI, poster Poster, guilds []GuildConfig, runDir string, logger *slog.Logger) *Collector {
	return &Collector{
		api:    api,
		poster: poster,
		guilds: guilds,
		runDir: runDir,
		logger: logger,
		now:    time.Now,
	}
}

// Run polls all guilds on the given interval until ctx is cancelled.
// The first poll happens immediately.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	c.logger.Info("News collector started",
		slog.Int("guilds", len(c.guilds)),
		slog.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		c.Poll(ctx)

		select {
		case <-ctx.Done():
			c.logger.Info("News collector stopping")
			return
		case <-ticker.C:
		}
	}
}

// Poll runs one pass over every configured guild. A failing guild never
// stops the others.
func (c *Collector) Poll(ctx context.Context) {
	for _, guild := range c.guilds {
		if err := c.pollGuild(ctx, guild); err != nil {
			c.logger.Error("Guild poll failed",
				slog.String("guild", guild.Key),
				slog.Any("error", err),
			)
		}
	}
}

func (c *Collector) pollGuild(ctx context.Context, guild GuildConfig) error {
	since, err := c.readRunFile(guild.Key)
	if err != nil {
		// First run for this guild: start from now so history is not
		// replayed into the channel.
		since = c.now().Unix() * 1000
		if err := c.writeRunFile(guild.Key, since); err != nil {
			return err
		}
		c.logger.Info("Initialised run file",
			slog.String("guild", guild.Key),
			slog.Int64("timestamp", since),
		)
	}

	doc, err := c.api.GuildNews(ctx, guild.Realm, guild.Name)
	if err != nil {
		return fmt.Errorf("guild news fetch failed: %w", err)
	}

	guildName, _ := doc["name"].(string)
	items := filterNews(doc, since)

	c.logger.Debug("Guild polled",
		slog.String("guild", guild.Key),
		slog.Int("new_items", len(items)),
	)

	for _, item := range items {
		if err := c.poster.Post(ctx, guild.WebhookURL, announcement(guildName, item)); err != nil {
			c.logger.Error("Failed to announce news item",
				slog.String("guild", guild.Key),
				slog.Any("error", err),
			)
		}
	}

	// Track the armory's own clock, not ours, so comparisons stay in one
	// time base.
	if lastModified, ok := doc["lastModified"].(float64); ok {
		if err := c.writeRunFile(guild.Key, int64(lastModified)); err != nil {
			return err
		}
	}

	return nil
}

// filterNews keeps achievement items newer than the high-water timestamp
func filterNews(doc map[string]interface{}, since int64) []map[string]interface{} {
	newsList, ok := doc["news"].([]interface{})
	if !ok {
		return nil
	}

	var items []map[string]interface{}
	for _, raw := range newsList {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		itemType, _ := item["type"].(string)
		if itemType != "guildAchievement" && itemType != "playerAchievement" {
			continue
		}
		timestamp, ok := item["timestamp"].(float64)
		if !ok || int64(timestamp) <= since {
			continue
		}
		items = append(items, item)
	}
	return items
}

// announcement builds the webhook payload for one news item
func announcement(guildName string, item map[string]interface{}) map[string]interface{} {
	achievement, _ := item["achievement"].(map[string]interface{})
	title, _ := achievement["title"].(string)
	description, _ := achievement["description"].(string)
	points := achievement["points"]
	icon, _ := achievement["icon"].(string)

	var id int64
	if f, ok := achievement["id"].(float64); ok {
		id = int64(f)
	}

	who := guildName
	if itemType, _ := item["type"].(string); itemType == "playerAchievement" {
		if character, ok := item["character"].(string); ok {
			who = character
		}
	}

	return map[string]interface{}{
		"content": fmt.Sprintf("%s earned achievement %s for %v points", who, title, points),
		"embeds": []map[string]interface{}{{
			"title":       title,
			"url":         fmt.Sprintf("http://www.wowhead.com/achievement=%d", id),
			"description": description,
			"type":        "link",
			"thumbnail": map[string]interface{}{
				"url": fmt.Sprintf("http://wow.zamimg.com/images/wow/icons/large/%s.jpg", icon),
			},
		}},
	}
}

func (c *Collector) runFilePath(guildKey string) string {
	return filepath.Join(c.runDir, guildKey)
}

func (c *Collector) readRunFile(guildKey string) (int64, error) {
	data, err := os.ReadFile(c.runFilePath(guildKey))
	if err != nil {
		return 0, err
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed run file for %q: %w", guildKey, err)
	}
	return ts, nil
}

func (c *Collector) writeRunFile(guildKey string, timestamp int64) error {
	if err := os.WriteFile(c.runFilePath(guildKey), []byte(strconv.FormatInt(timestamp, 10)), 0o644); err != nil {
		return fmt.Errorf("failed to write run file for %q: %w", guildKey, err)
	}
	return nil
}
