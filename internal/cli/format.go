// Package cli holds terminal helpers shared by the command-line tools:
// provider setup, prompts and output formatting.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fpang/caption-wizard/internal/caption"
	"github.com/fpang/caption-wizard/internal/wizard"
)

// PrintStatus writes the current step and a checklist of every step.
func PrintStatus(w io.Writer, wz *wizard.Wizard) {
	step := wz.Step()
	rec := wz.Record()
	done := wz.Completion()

	values := [wizard.LastStep]string{
		strings.TrimSpace(string(rec.MediaType) + " " + displayMedia(rec.MediaURL)),
		rec.Niche,
		rec.Platform,
		rec.Goal,
		rec.Tone,
		captionSummary(rec.GeneratedCaptions),
	}

	fmt.Fprintf(w, "Step %d of %d: %s\n\n", step, wizard.LastStep, step.Label())
	for s := wizard.FirstStep; s <= wizard.LastStep; s++ {
		mark := " "
		if done[s-1] {
			mark = "x"
		}
		cursor := "  "
		if s == step {
			cursor = "> "
		}
		fmt.Fprintf(w, "%s[%s] %-18s %s\n", cursor, mark, s.Label(), values[s-1])
	}
}

// PrintCaptions writes numbered captions.
func PrintCaptions(w io.Writer, captions []caption.Caption) {
	if len(captions) == 0 {
		fmt.Fprintln(w, "No captions.")
		return
	}
	for i, c := range captions {
		fmt.Fprintf(w, "\n%d. %s\n%s\n", i+1, c.Title, c.Content)
		if c.CallToAction != "" {
			fmt.Fprintf(w, "   → %s\n", c.CallToAction)
		}
	}
	fmt.Fprintln(w)
}

func displayMedia(ref string) string {
	if ref == wizard.TextOnlyReference {
		return ""
	}
	return ref
}

func captionSummary(captions []caption.Caption) string {
	if captions == nil {
		return ""
	}
	return fmt.Sprintf("%d caption(s)", len(captions))
}
