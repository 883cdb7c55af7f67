package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// mountsCacheTTL is how long a cached collection document stays fresh.
// Collections change slowly, and the upstream API is rate limited.
const mountsCacheTTL = 10 * time.Minute

// MountsLookup answers mount collection queries. Responses are cached on
// disk per realm and character so repeated queries inside the TTL never hit
// the upstream API.
type MountsLookup struct {
	api          CharacterAPI
	cacheDir     string
	defaultRealm string
	logger       *slog.Logger

	// swapped out in tests
	now func() time.Time
}

// NewMountsLookup creates a mount collection lookup job
func NewMountsLookup(api CharacterAPI, cacheDir, defaultRealm string, logger *slog.Logger) *MountsLookup {
	return &MountsLookup{
		api:          api,
		cacheDir:     cacheDir,
		defaultRealm: defaultRealm,
		logger:       logger,
		now:          time.Now,
	}
}

// Run reports collection progress for the character named in the job body
func (l *MountsLookup) Run(ctx context.Context, body map[string]interface{}) (map[string]interface{}, error) {
	character, err := requireCharacter(body)
	if err != nil {
		return nil, err
	}

	realm := stringField(body, "realm")
	if realm == "" {
		realm = l.defaultRealm
	}

	l.logger.Info("Looking up mount collection",
		slog.String("character", character),
		slog.String("realm", realm),
	)

	toon, err := l.getData(ctx, realm, character)
	if err != nil {
		return nil, err
	}

	mounts, ok := toon["mounts"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("character document has no mounts field")
	}

	return map[string]interface{}{
		"character":    character,
		"realm":        realm,
		"output_name":  toon["name"],
		"output_realm": toon["realm"],
		"thumbnail":    toon["thumbnail"],
		"colour":       factionColour(toon["faction"]),
		"collected":    mounts["numCollected"],
		"uncollected":  mounts["numNotCollected"],
	}, nil
}

// getData returns the character document from the disk cache when fresh,
// refreshing it from the API otherwise. A stale or unreadable cache file is
// treated as a miss.
func (l *MountsLookup) getData(ctx context.Context, realm, character string) (map[string]interface{}, error) {
	cacheFile := filepath.Join(l.cacheDir, fmt.Sprintf("%s_%s_mounts.json", realm, character))

	if toon := l.readCache(cacheFile); toon != nil {
		l.logger.Debug("Mount collection served from cache",
			slog.String("file", cacheFile),
		)
		return toon, nil
	}

	toon, err := l.api.CharacterMounts(ctx, realm, character)
	if err != nil {
		return nil, fmt.Errorf("mount lookup failed: %w", err)
	}

	if data, err := json.Marshal(toon); err == nil {
		if err := os.WriteFile(cacheFile, data, 0o644); err != nil {
			l.logger.Warn("Failed to write mounts cache file",
				slog.String("file", cacheFile),
				slog.Any("error", err),
			)
		}
	}

	return toon, nil
}

func (l *MountsLookup) readCache(cacheFile string) map[string]interface{} {
	// Freshness is measured from when the file was fetched, not from any
	// timestamp inside the document.
	info, err := os.Stat(cacheFile)
	if err != nil {
		return nil
	}
	if l.now().After(info.ModTime().Add(mountsCacheTTL)) {
		return nil
	}

	data, err := os.ReadFile(cacheFile)
	if err != nil {
		return nil
	}

	var toon map[string]interface{}
	if err := json.Unmarshal(data, &toon); err != nil {
		l.logger.Warn("Discarding unreadable mounts cache file",
			slog.String("file", cacheFile),
			slog.Any("error", err),
		)
		return nil
	}

	return toon
}
