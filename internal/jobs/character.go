package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CharacterLookup answers character queries with profile data and a
// human-readable "last seen" age derived from the profile's lastModified
// timestamp.
type CharacterLookup struct {
	api          CharacterAPI
	defaultRealm string
	logger       *slog.Logger

	// swapped out in tests
	now func() time.Time
}

// NewCharacterLookup creates a character lookup job
func NewCharacterLookup(api CharacterAPI, defaultRealm string, logger *slog.Logger) *CharacterLookup {
	return &CharacterLookup{
		api:          api,
		defaultRealm: defaultRealm,
		logger:       logger,
		now:          time.Now,
	}
}

// Run fetches the character profile and summarises when it was last updated
func (l *CharacterLookup) Run(ctx context.Context, body map[string]interface{}) (map[string]interface{}, error) {
	character, err := requireCharacter(body)
	if err != nil {
		return nil, err
	}

	realm := stringField(body, "realm")
	if realm == "" {
		realm = l.defaultRealm
	}

	l.logger.Info("Looking up character",
		slog.String("character", character),
		slog.String("realm", realm),
	)

	toon, err := l.api.CharacterProfile(ctx, realm, character)
	if err != nil {
		return nil, fmt.Errorf("character lookup failed: %w", err)
	}

	lastModified, ok := toon["lastModified"].(float64)
	if !ok {
		return nil, fmt.Errorf("character profile has no lastModified field")
	}
	lastSeen := time.UnixMilli(int64(lastModified))

	return map[string]interface{}{
		"character":     character,
		"realm":         realm,
		"output_name":   toon["name"],
		"output_realm":  toon["realm"],
		"thumbnail":     toon["thumbnail"],
		"colour":        factionColour(toon["faction"]),
		"last_seen":     lastSeen.Format("2006-01-02 15:04:05"),
		"last_seen_ago": relativeAge(l.now().Sub(lastSeen)),
	}, nil
}

// relativeAge renders a duration the way a player reads it: whole days,
// then hours once past two, otherwise minutes.
func relativeAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d.Hours() / 24)
	if days > 0 {
		return fmt.Sprintf("%d days ago", days)
	}
	seconds := int(d.Seconds())
	if seconds >= 7200 {
		return fmt.Sprintf("%d hours ago", seconds/3600)
	}
	return fmt.Sprintf("%d minutes ago", seconds/60)
}
