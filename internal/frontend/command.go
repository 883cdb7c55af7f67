// Package frontend is the user-facing half of the pipeline: it turns chat
// commands and HTTP requests into published job requests, and routes job
// responses back to their destinations.
package frontend

import (
	"fmt"
	"strings"
)

// Command is a chat command parsed into a publishable job request
type Command struct {
	JobType string
	Body    map[string]interface{}
}

// CleanRealm normalises a user-typed realm name: lower case with
// apostrophes stripped, so "Khaz'goroth" becomes "khazgoroth".
func CleanRealm(realm string) string {
	return strings.ReplaceAll(strings.ToLower(realm), "'", "")
}

// ParseCommand dispatches on the leading command word. Supported commands
// are !sim, !mounts and !query.
func ParseCommand(text string) (*Command, error) {
	trimmed := strings.TrimSpace(text)
	word, _, _ := strings.Cut(trimmed, " ")

	switch word {
	case "!sim":
		return ParseSimCommand(trimmed)
	case "!mounts":
		return ParseMountsCommand(trimmed)
	case "!query":
		return ParseQueryCommand(trimmed)
	default:
		return nil, fmt.Errorf("unknown command %q", word)
	}
}

// ParseSimCommand parses "!sim [realm] character [movement] [scaling]".
// A single argument is the character on the default realm; with two or more
// the first is the realm. Movement and scaling are passed through for the
// job function to validate.
func ParseSimCommand(text string) (*Command, error) {
	words, err := commandArgs(text, "!sim")
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{}
	if len(words) == 1 {
		body["character"] = words[0]
	} else {
		body["realm"] = CleanRealm(words[0])
		body["character"] = words[1]
		if len(words) >= 3 {
			body["movement"] = words[2]
		}
		if len(words) >= 4 {
			body["scaling"] = words[3]
		}
	}

	return &Command{JobType: "simc", Body: body}, nil
}

// ParseMountsCommand parses "!mounts character [realm]"
func ParseMountsCommand(text string) (*Command, error) {
	words, err := commandArgs(text, "!mounts")
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{"character": words[0]}
	if len(words) >= 2 {
		body["realm"] = CleanRealm(words[1])
	}

	return &Command{JobType: "mounts", Body: body}, nil
}

// ParseQueryCommand parses "!query character [realm]"
func ParseQueryCommand(text string) (*Command, error) {
	words, err := commandArgs(text, "!query")
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{"character": words[0]}
	if len(words) >= 2 {
		body["realm"] = CleanRealm(words[1])
	}

	return &Command{JobType: "character", Body: body}, nil
}

func commandArgs(text, cmd string) ([]string, error) {
	if !strings.HasPrefix(text, cmd) {
		return nil, fmt.Errorf("not a %s command", cmd)
	}
	words := strings.Fields(text[len(cmd):])
	if len(words) == 0 {
		return nil, fmt.Errorf("%s requires a character name", cmd)
	}
	return words, nil
}
