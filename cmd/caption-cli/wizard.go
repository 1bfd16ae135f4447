package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/caption-wizard/internal/caption"
	"github.com/fpang/caption-wizard/internal/cli"
	"github.com/fpang/caption-wizard/internal/config"
	"github.com/fpang/caption-wizard/internal/media"
	"github.com/fpang/caption-wizard/internal/wizard"
)

// wizard flags
var (
	kindFlag     string
	ideaFlag     string
	providerFlag string
	modelFlag    string
)

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Inspect and move through the caption wizard",
}

var wizardStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current step and the collected selections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wz, err := loadWizard(cmd.Context())
		if err != nil {
			return err
		}
		cli.PrintStatus(cmd.OutOrStdout(), wz)
		return nil
	},
}

var wizardSetCmd = &cobra.Command{
	Use:   "set <media|niche|platform|goal|tone> [value]",
	Short: "Record the selection for a step",
	Long: `Record the selection for a step. Media takes a file path or URL and a
--kind; use --kind text-only without a value to post text only.

Platforms: linkedin, twitter, facebook, instagram, tiktok, youtube.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value := ""
		if len(args) > 1 {
			value = args[1]
		} else if strings.ToLower(args[0]) != "media" {
			value = cli.PromptForValue(cmd.InOrStdin(), cmd.OutOrStdout(), args[0], "")
		}
		patch, err := patchFor(args[0], value, wizard.MediaKind(kindFlag))
		if err != nil {
			return err
		}
		wz, err := updateWizard(cmd.Context(), patch)
		if err != nil {
			return err
		}
		cli.PrintStatus(cmd.OutOrStdout(), wz)
		return nil
	},
}

var wizardNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Advance to the next step when the current one is complete",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wz, moved, err := moveWizard(cmd.Context(), true)
		if err != nil {
			return err
		}
		if !moved {
			fmt.Fprintf(cmd.ErrOrStderr(), "Step %d (%s) is not complete yet.\n", wz.Step(), wz.Step().Label())
		}
		cli.PrintStatus(cmd.OutOrStdout(), wz)
		return nil
	},
}

var wizardBackCmd = &cobra.Command{
	Use:   "back",
	Short: "Return to the previous step",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wz, _, err := moveWizard(cmd.Context(), false)
		if err != nil {
			return err
		}
		cli.PrintStatus(cmd.OutOrStdout(), wz)
		return nil
	},
}

var wizardResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all selections and start over",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wz, err := loadWizard(cmd.Context())
		if err != nil {
			return err
		}
		if err := wz.Reset(cmd.Context()); err != nil {
			return err
		}
		cli.PrintStatus(cmd.OutOrStdout(), wz)
		return nil
	},
}

var wizardGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate captions from the current selections",
	Args:  cobra.NoArgs,
	RunE:  runGenerate,
}

func init() {
	wizardSetCmd.Flags().StringVar(&kindFlag, "kind", string(wizard.MediaImage), "Media kind: image, video or text-only")
	wizardGenerateCmd.Flags().StringVar(&ideaFlag, "idea", "", "Optional post idea to steer the captions")
	wizardGenerateCmd.Flags().StringVarP(&providerFlag, "provider", "p", "", "Caption provider: openai, gemini or mock (overrides CAPTION_PROVIDER)")
	wizardGenerateCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Provider model to use (overrides CAPTION_MODEL)")

	wizardCmd.AddCommand(wizardStatusCmd, wizardSetCmd, wizardNextCmd, wizardBackCmd, wizardResetCmd, wizardGenerateCmd)
}

// patchFor maps a step name and value to a validated patch.
func patchFor(field, value string, kind wizard.MediaKind) (wizard.Patch, error) {
	var p wizard.Patch
	field = strings.ToLower(field)
	switch field {
	case "media":
		if value == "" && kind != wizard.MediaTextOnly {
			return p, fmt.Errorf("media needs a path or URL unless --kind is text-only")
		}
		p = wizard.SetMedia(value, kind)
	case "niche":
		p = wizard.SetNiche(value)
	case "platform":
		p = wizard.SetPlatform(strings.ToLower(value))
	case "goal":
		p = wizard.SetGoal(value)
	case "tone":
		p = wizard.SetTone(value)
	default:
		return p, fmt.Errorf("unknown step %q: want media, niche, platform, goal or tone", field)
	}
	if field != "media" && value == "" {
		return p, fmt.Errorf("%s needs a value", field)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg := config.Load()
	if providerFlag != "" {
		cfg.Provider.Name = strings.ToLower(providerFlag)
	}
	if modelFlag != "" {
		cfg.Provider.Model = modelFlag
	}
	gen, model := cli.InitGenerator(ctx, cfg.Provider)

	wz, err := loadWizard(ctx)
	if err != nil {
		return err
	}
	rec := wz.Record()
	req := caption.Request{
		Tone:            rec.Tone,
		Platform:        rec.Platform,
		Niche:           rec.Niche,
		Goal:            rec.Goal,
		MediaType:       string(rec.MediaType),
		PostIdea:        ideaFlag,
		MetadataContext: localMetadata(rec),
	}

	log.Info().Str("provider", cfg.Provider.Name).Str("model", model).Msg("Generating captions")
	captions, err := caption.NewService(gen, cfg.Provider.Name).Generate(ctx, req)
	if err != nil {
		return err
	}
	if err := wz.Update(ctx, wizard.SetCaptions(captions)); err != nil {
		log.Warn().Err(err).Msg("Captions generated but not saved")
	} else if err := wz.SaveStep(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to save wizard step")
	}

	cli.PrintCaptions(cmd.OutOrStdout(), captions)
	return nil
}

// localMetadata reads EXIF from the step 1 media when it is a local image.
func localMetadata(rec wizard.Record) string {
	if rec.MediaType != wizard.MediaImage || rec.MediaURL == "" {
		return ""
	}
	data, err := os.ReadFile(rec.MediaURL)
	if err != nil {
		return ""
	}
	meta, err := media.ExtractImageMetadata(data)
	if err != nil {
		log.Debug().Err(err).Str("path", rec.MediaURL).Msg("No metadata for media")
		return ""
	}
	return meta.FormatMetadataContext()
}
