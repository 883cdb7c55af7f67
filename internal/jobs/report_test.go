package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleReport = `
SimulationCraft 735-01 for World of Warcraft 7.3.5 Live

Player: Vengel night_elf warrior protection 110

  DPS: 845321.2  DPS-Error=1234.5/0.15%  DPS-Range=23456/2.8%

  Weights :  Agi=9.85(0.17)  AP=9.31(0.17)  Crit=4.83(0.16)  Haste=3.16(0.16)  Mastery=5.95(0.17)  Vers=5.05(0.16)  Wdps=9.22(0.17)
`

func TestParseReport(t *testing.T) {
	report := ParseReport(sampleReport)

	assert.Equal(t, "Vengel", report.Character)
	assert.Equal(t, "Night elf", report.Race)
	assert.Equal(t, "Warrior", report.Class)
	assert.Equal(t, "Protection", report.Spec)
	assert.Equal(t, "845321.2", report.DPS)
	assert.Equal(t, "Agi=9.85 AP=9.31 Crit=4.83 Haste=3.16 Mastery=5.95 Vers=5.05 Wdps=9.22", report.Weights)
}

func TestParseReport_MissingSections(t *testing.T) {
	report := ParseReport("simc printed an error and nothing else")

	assert.Empty(t, report.Character)
	assert.Empty(t, report.DPS)
	assert.Empty(t, report.Weights)
}

func TestTitleWord(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"vengel", "Vengel"},
		{"night_elf", "Night elf"},
		{"DEMON_HUNTER", "Demon hunter"},
		{"", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, titleWord(tc.in))
	}
}
