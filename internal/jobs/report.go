package jobs

import (
	"regexp"
	"strings"
	"unicode"
)

// Report holds the fields scraped from a SimulationCraft text report
type Report struct {
	Character string
	Race      string
	Class     string
	Spec      string
	DPS       string
	Weights   string
}

var (
	// Player: Vengel night_elf warrior protection 110
	playerRe = regexp.MustCompile(`(?im)^Player:\s+(\w+)\s+(\w+)\s+(\w+)\s+(\w+)\s+\d+$`)

	//   DPS: 12345.6 ...
	dpsRe = regexp.MustCompile(`(?im)^\s*DPS:\s+([.\d]+)`)

	// Weights :  Agi=9.85(0.17)  AP=9.31(0.17)  ...
	weightsRe     = regexp.MustCompile(`(?im)^\s*Weights\s*:\s*(.+?)\s*$`)
	weightErrRe   = regexp.MustCompile(`\([.\d]+\)`)
	multiSpacesRe = regexp.MustCompile(`\s{2,}`)
)

// ParseReport scrapes the interesting lines out of simc's textual output.
// Missing lines leave their fields empty; the caller decides whether that is
// fatal.
func ParseReport(text string) Report {
	var report Report

	if m := playerRe.FindStringSubmatch(text); m != nil {
		report.Character = titleWord(m[1])
		report.Race = titleWord(m[2])
		report.Class = titleWord(m[3])
		report.Spec = titleWord(m[4])
	}

	if m := dpsRe.FindStringSubmatch(text); m != nil {
		report.DPS = m[1]
	}

	if m := weightsRe.FindStringSubmatch(text); m != nil {
		weights := weightErrRe.ReplaceAllString(m[1], "")
		weights = multiSpacesRe.ReplaceAllString(weights, " ")
		report.Weights = strings.TrimSpace(weights)
	}

	return report
}

// titleWord turns "night_elf" into "Night elf"
func titleWord(w string) string {
	w = strings.ToLower(strings.ReplaceAll(w, "_", " "))
	runes := []rune(w)
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}
