// Package caption generates social-media captions from the wizard's
// selections through an LLM provider and parses the provider's reply into
// structured captions.
package caption

import (
	"context"
	"strings"

	"github.com/fpang/caption-wizard/internal/assets"
)

// Caption is one generated caption.
type Caption struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	CallToAction string `json:"callToAction"`
}

// Defaults applied to empty request fields.
const (
	DefaultTone      = "professional"
	DefaultPlatform  = "instagram"
	DefaultNiche     = "general"
	DefaultMediaType = "image"
)

// Request carries the selections a caption is generated for.
type Request struct {
	Tone      string `json:"tone"`
	Platform  string `json:"platform"`
	Niche     string `json:"niche"`
	Goal      string `json:"goal"`
	MediaType string `json:"mediaType"`
	PostIdea  string `json:"postIdea,omitempty"`
	// MetadataContext is optional formatted metadata of the attached image.
	MetadataContext string `json:"-"`
}

// WithDefaults returns a copy of r with empty fields filled in.
func (r Request) WithDefaults() Request {
	if r.Tone == "" {
		r.Tone = DefaultTone
	}
	if r.Platform == "" {
		r.Platform = DefaultPlatform
	}
	if r.Niche == "" {
		r.Niche = DefaultNiche
	}
	if r.MediaType == "" {
		r.MediaType = DefaultMediaType
	}
	return r
}

// Prompt is a rendered system + user prompt pair.
type Prompt struct {
	System string
	User   string
}

// Generator completes a prompt with an LLM and returns the raw reply text.
type Generator interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// BuildPrompt renders the prompt for r. Defaults are applied first.
func BuildPrompt(r Request) (Prompt, error) {
	r = r.WithDefaults()

	subject := strings.TrimSpace(r.PostIdea)
	if subject == "" {
		subject = "this post"
	}

	var mediaNote string
	switch r.MediaType {
	case "image":
		mediaNote = "an image"
	case "video":
		mediaNote = "a video"
	}

	user, err := assets.RenderCaptionPrompt(assets.CaptionPromptData{
		Tone:            r.Tone,
		Platform:        r.Platform,
		Niche:           r.Niche,
		Goal:            r.Goal,
		Subject:         subject,
		MediaNote:       mediaNote,
		MetadataContext: r.MetadataContext,
		ShareKnowledge:  isShareKnowledge(r.Goal),
	})
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{System: assets.CaptionSystemPrompt(), User: user}, nil
}

// isShareKnowledge matches the goal by id ("share-knowledge") or by its
// display name ("Share Knowledge").
func isShareKnowledge(goal string) bool {
	g := strings.ToLower(strings.TrimSpace(goal))
	g = strings.ReplaceAll(g, "-", " ")
	return g == "share knowledge"
}
