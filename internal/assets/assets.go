// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time so that the CLI, the web server and the Lambda share one copy.
package assets

import (
	_ "embed"
	"strings"
)

// captionSystemPrompt is the system instruction sent with every caption
// generation request.
//
//go:embed prompts/caption-system.txt
var captionSystemPrompt string

// CaptionSystemPrompt returns the system instruction without the trailing newline.
func CaptionSystemPrompt() string {
	return strings.TrimSpace(captionSystemPrompt)
}
