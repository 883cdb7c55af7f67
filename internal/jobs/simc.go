package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// SimcConfig holds the paths the simulation wrapper needs
type SimcConfig struct {
	SimcPath     string // path to the SimulationCraft binary
	OutputPath   string // directory the html reports land in
	ProfilePath  string // directory holding the .simc profile fragments
	URLPrefix    string // public URL the output directory is served under
	DefaultRealm string
}

// SimcRunner wraps the SimulationCraft binary. The character to simulate is
// written into a temp input file rather than passed on the command line, so
// caller-supplied names never reach the shell.
type SimcRunner struct {
	cfg    *SimcConfig
	api    CharacterAPI
	logger *slog.Logger

	// swapped out in tests
	execCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewSimcRunner creates a simulation runner
func NewSimcRunner(cfg *SimcConfig, api CharacterAPI, logger *slog.Logger) *SimcRunner {
	return &SimcRunner{
		cfg:    cfg,
		api:    api,
		logger: logger,
		execCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// Run executes a simulation for the character named in the job body and
// returns the scraped results. Simulations have no upper bound on runtime,
// so the subprocess runs without a deadline of its own and is only cancelled
// through ctx.
func (r *SimcRunner) Run(ctx context.Context, body map[string]interface{}) (map[string]interface{}, error) {
	character, err := requireCharacter(body)
	if err != nil {
		return nil, err
	}

	realm := stringField(body, "realm")
	if realm == "" {
		realm = r.cfg.DefaultRealm
	}
	movement := stringField(body, "movement")
	if movement != "light" && movement != "heavy" {
		movement = "none"
	}
	scaling := stringField(body, "scaling") == "1"

	filename := realm + "_" + character
	if movement != "none" {
		filename += "_" + movement
	}
	if scaling {
		filename += "_scale"
	}

	r.logger.Info("Running simulation",
		slog.String("character", character),
		slog.String("realm", realm),
		slog.String("movement", movement),
		slog.Bool("scaling", scaling),
	)

	inputFile, err := r.writeInputFile(realm, character)
	if err != nil {
		return nil, err
	}
	defer os.Remove(inputFile)

	args := []string{filepath.Join(r.cfg.ProfilePath, "basic.simc"), inputFile}
	switch movement {
	case "light":
		args = append(args, filepath.Join(r.cfg.ProfilePath, "Raid_Event_Movement_Light.simc"))
	case "heavy":
		args = append(args, filepath.Join(r.cfg.ProfilePath, "Raid_Event_Movement_Heavy.simc"))
	}
	if scaling {
		args = append(args, filepath.Join(r.cfg.ProfilePath, "scaling.simc"))
	} else {
		args = append(args, filepath.Join(r.cfg.ProfilePath, "noscaling.simc"))
	}
	args = append(args, "html="+filepath.Join(r.cfg.OutputPath, filename+".html"))

	output, err := r.execCommand(ctx, r.cfg.SimcPath, args...)
	if err != nil {
		return nil, fmt.Errorf("simc execution failed: %w", err)
	}

	result := map[string]interface{}{
		"character":    character,
		"realm":        realm,
		"url":          r.cfg.URLPrefix + "/" + filename + ".html",
		"colour":       ColourDefault,
		"output_realm": nil,
		"thumbnail":    nil,
	}

	report := ParseReport(string(output))
	if report.Character != "" {
		result["output_character"] = report.Character
		result["output_race"] = report.Race
		result["output_class"] = report.Class
		result["output_spec"] = report.Spec
	}
	if report.DPS != "" {
		result["dps"] = report.DPS
	}
	result["weights"] = report.Weights

	// Armory decoration is best effort: the sim result stands on its own.
	if r.api != nil {
		if toon, err := r.api.CharacterProfile(ctx, realm, character); err != nil {
			r.logger.Warn("Character lookup after simulation failed",
				slog.String("character", character),
				slog.Any("error", err),
			)
		} else {
			result["output_realm"] = toon["realm"]
			result["thumbnail"] = toon["thumbnail"]
			result["colour"] = factionColour(toon["faction"])
		}
	}

	return result, nil
}

// writeInputFile creates the temp armory input file naming the character,
// keeping user input out of the argument list.
func (r *SimcRunner) writeInputFile(realm, character string) (string, error) {
	f, err := os.CreateTemp("", "simc-input-*.simc")
	if err != nil {
		return "", fmt.Errorf("failed to create simc input file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "armory=us,%s,%s\n", realm, character); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write simc input file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close simc input file: %w", err)
	}
	return f.Name(), nil
}
