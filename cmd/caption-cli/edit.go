package main

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/caption-wizard/internal/editor"
	"github.com/fpang/caption-wizard/internal/media"
	"github.com/fpang/caption-wizard/internal/wizard"
)

// edit flags
var (
	rotateFlags []string
	filterFlag  string
	outFlag     string
	pickFlag    bool
	attachFlag  bool
	maxDimFlag  int
)

var editCmd = &cobra.Command{
	Use:   "edit [file]",
	Short: "Rotate and filter an image, then save it as JPEG",
	Long: `Rotate an image in quarter turns and apply one colour filter, then save
the result as JPEG. Videos are not edited.

Filters: none, grayscale, sepia, invert, blur, brightness, contrast.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().StringArrayVarP(&rotateFlags, "rotate", "r", nil, "Quarter turn to apply, cw or ccw (repeatable)")
	editCmd.Flags().StringVarP(&filterFlag, "filter", "f", "", "Colour filter to apply")
	editCmd.Flags().StringVarP(&outFlag, "out", "o", "", "Output path (default <name>-edited.jpg next to the input)")
	editCmd.Flags().BoolVar(&pickFlag, "pick", false, "Choose the input with a native file dialog")
	editCmd.Flags().BoolVar(&attachFlag, "attach", false, "Use the edited image as the wizard's media")
	editCmd.Flags().IntVar(&maxDimFlag, "max-dimension", 4096, "Scale the source down so neither side exceeds this")
}

func runEdit(cmd *cobra.Command, args []string) error {
	var path string
	switch {
	case len(args) == 1:
		path = args[0]
	case pickFlag:
		picked, err := pickImage()
		if err != nil {
			return err
		}
		path = picked
	default:
		return errors.New("no input: pass a file or use --pick")
	}

	kind, err := media.DetectKind(path, "")
	if err != nil {
		return err
	}
	if kind == media.KindVideo {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s is a video; videos are posted as they are.\n", path)
		return nil
	}

	filter, err := editor.ParseFilter(filterFlag)
	if err != nil {
		return err
	}
	dirs := make([]editor.Direction, 0, len(rotateFlags))
	for _, r := range rotateFlags {
		d, err := editor.ParseDirection(strings.ToLower(r))
		if err != nil {
			return err
		}
		dirs = append(dirs, d)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	img, format, err := media.Decode(f)
	f.Close()
	if err != nil {
		return err
	}

	buf := editor.New()
	buf.LoadSource(media.Fit(img, maxDimFlag), path)
	for _, d := range dirs {
		buf.Rotate(d)
	}
	buf.SetFilter(filter)

	res, err := buf.Export()
	if err != nil {
		return err
	}

	out := outFlag
	if out == "" {
		out = editedPath(path)
	}
	if err := os.WriteFile(out, res.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	w, h := buf.Size()
	log.Info().
		Str("input", path).
		Str("format", format).
		Str("output", out).
		Int("rotation", buf.Rotation()).
		Str("filter", string(buf.Filter())).
		Int("width", w).
		Int("height", h).
		Msg("Image edited")
	fmt.Fprintln(cmd.OutOrStdout(), out)

	if attachFlag {
		if _, err := updateWizard(cmd.Context(), wizard.SetMedia(out, wizard.MediaImage)); err != nil {
			return err
		}
	}
	return nil
}

// editedPath returns "<dir>/<name>-edited.jpg" for input.
func editedPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "-edited.jpg"
}

func pickImage() (string, error) {
	var patterns []string
	for _, ext := range slices.Sorted(maps.Keys(media.SupportedImageExtensions)) {
		patterns = append(patterns, "*"+ext)
	}
	selected, err := zenity.SelectFile(
		zenity.Title("Select an image to edit"),
		zenity.FileFilters{
			{Name: "Images", Patterns: patterns, CaseFold: true},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return "", errors.New("no file selected")
		}
		return "", fmt.Errorf("file dialog: %w", err)
	}
	return selected, nil
}
