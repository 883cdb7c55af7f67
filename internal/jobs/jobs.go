// Package jobs contains the worker functions executed on dispatch pool
// slots: the SimulationCraft wrapper, the character lookup, and the mount
// collection lookup. Each Run method has the dispatch.JobFunc shape, does
// blocking subprocess or HTTP work, and must be harmless to re-run because
// the broker delivers at least once.
package jobs

import (
	"context"
	"fmt"
)

// CharacterAPI is the armory surface the job functions call outward on.
// Implemented by *armory.Client.
type CharacterAPI interface {
	CharacterProfile(ctx context.Context, realm, character string) (map[string]interface{}, error)
	CharacterMounts(ctx context.Context, realm, character string) (map[string]interface{}, error)
}

// Embed colours keyed by faction
const (
	ColourDefault  = 0x119911
	ColourAlliance = 0x1111FF
	ColourHorde    = 0xFF1111
)

// factionColour maps the armory faction code to an embed colour
func factionColour(faction interface{}) int {
	// JSON numbers decode as float64
	if f, ok := faction.(float64); ok && f == 0 {
		return ColourAlliance
	}
	return ColourHorde
}

// stringField extracts a string value from a job body
func stringField(body map[string]interface{}, key string) string {
	if v, ok := body[key].(string); ok {
		return v
	}
	return ""
}

// requireCharacter pulls the mandatory character field from a job body
func requireCharacter(body map[string]interface{}) (string, error) {
	character := stringField(body, "character")
	if character == "" {
		return "", fmt.Errorf("job body has no character field")
	}
	return character, nil
}
