// Command caption-cli drives the caption wizard and the image editor from a
// terminal. Wizard progress is kept in a JSON file under the state
// directory, so each invocation picks up where the last one stopped.
package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/caption-wizard/internal/logging"
	"github.com/fpang/caption-wizard/internal/wizard"
)

// CLI flags
var (
	stateDirFlag string
)

var rootCmd = &cobra.Command{
	Use:   "caption-cli",
	Short: "Caption wizard and image editor for the terminal",
	Long: `Caption CLI walks through the six caption wizard steps (media, niche,
platform, goal, tone, captions) and edits images before they are posted.

Examples:
  caption-cli wizard set media ./beach.jpg --kind image
  caption-cli wizard next
  caption-cli wizard set niche "travel"
  caption-cli wizard generate --idea "sunset swim after a long hike"
  caption-cli edit ./beach.jpg --rotate cw --filter sepia
  caption-cli edit --pick --filter grayscale --out ./gray.jpg`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&stateDirFlag, "state-dir", defaultStateDir(), "Directory holding the saved wizard state")
	rootCmd.AddCommand(wizardCmd, editCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// defaultStateDir is ~/.caption-wizard, next to the stored API keys.
func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".caption-wizard"
	}
	return filepath.Join(home, ".caption-wizard")
}

// loadWizard rehydrates the saved wizard from the state directory.
func loadWizard(ctx context.Context) (*wizard.Wizard, error) {
	storage, err := wizard.NewFileStorage(stateDirFlag)
	if err != nil {
		return nil, err
	}
	wz := wizard.Load(ctx, storage, wizard.DefaultKey)
	log.Debug().Str("dir", stateDirFlag).Int("step", int(wz.Step())).Msg("Wizard state loaded")
	return wz, nil
}

// updateWizard merges p into the saved wizard and saves its step, so the
// position shown by this run is where the next run starts.
func updateWizard(ctx context.Context, p wizard.Patch) (*wizard.Wizard, error) {
	wz, err := loadWizard(ctx)
	if err != nil {
		return nil, err
	}
	if err := wz.Update(ctx, p); err != nil {
		return nil, err
	}
	if err := wz.SaveStep(ctx); err != nil {
		return nil, err
	}
	return wz, nil
}

// moveWizard advances or retreats the saved wizard and reports whether the
// step changed. A changed step is saved.
func moveWizard(ctx context.Context, forward bool) (*wizard.Wizard, bool, error) {
	wz, err := loadWizard(ctx)
	if err != nil {
		return nil, false, err
	}
	var moved bool
	if forward {
		moved = wz.Advance()
	} else {
		moved = wz.Retreat()
	}
	if moved {
		if err := wz.SaveStep(ctx); err != nil {
			return nil, false, err
		}
	}
	return wz, moved, nil
}
