package assets

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
)

//go:embed prompts/caption-user.txt
var captionUserTemplate string

// Parsed once; template.Must panics on a malformed template at startup
// rather than on the first request.
var captionUserTmpl = template.Must(template.New("caption-user").Parse(captionUserTemplate))

// CaptionPromptData holds the values injected into the caption prompt.
type CaptionPromptData struct {
	Tone     string
	Platform string
	Niche    string
	Goal     string
	// Subject is the post idea, or a neutral phrase when the user gave none.
	Subject string
	// MediaNote describes the attached media ("an image", "a video"); empty
	// for text-only posts.
	MediaNote string
	// MetadataContext is formatted EXIF data of the attached image, if any.
	MetadataContext string
	// ShareKnowledge switches on the "Did you know?" opener rule.
	ShareKnowledge bool
}

// RenderCaptionPrompt renders the user prompt for caption generation.
func RenderCaptionPrompt(data CaptionPromptData) (string, error) {
	var buf bytes.Buffer
	if err := captionUserTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render caption prompt: %w", err)
	}
	return buf.String(), nil
}
