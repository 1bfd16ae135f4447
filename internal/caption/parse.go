package caption

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fpang/caption-wizard/internal/jsonutil"
)

// ErrNoCaptions is returned when a reply holds neither caption blocks nor a
// JSON caption list.
var ErrNoCaptions = errors.New("no captions found in reply")

const (
	tagTitle   = "[Title]"
	tagCaption = "[Caption]"
	tagCTA     = "[Call to Action]"

	untitled = "Untitled"
)

// ParseCaptions turns a provider reply into captions.
//
// Each [Title] starts a block. The title runs to [Caption], the body runs to
// [Call to Action] and the call to action runs to the next blank line, the
// next block or the end. A block without a title is named "Untitled". Ids
// are caption-1, caption-2 and so on in reply order.
//
// When the reply holds no [Title] or [Caption] markers, a JSON array of
// captions, optionally inside markdown fences, is accepted instead.
func ParseCaptions(raw string) ([]Caption, error) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	blocks := splitBlocks(raw)
	if len(blocks) == 0 {
		return parseJSONCaptions(raw)
	}

	captions := make([]Caption, 0, len(blocks))
	for _, b := range blocks {
		c := parseBlock(b)
		if c.Content == "" && c.CallToAction == "" && c.Title == untitled {
			continue
		}
		c.ID = fmt.Sprintf("caption-%d", len(captions)+1)
		captions = append(captions, c)
	}
	if len(captions) == 0 {
		return nil, ErrNoCaptions
	}
	return captions, nil
}

// splitBlocks cuts raw at every [Title]. Replies that omit titles but still
// use [Caption] are split at [Caption] instead.
func splitBlocks(raw string) []string {
	sep := tagTitle
	if !strings.Contains(raw, tagTitle) {
		if !strings.Contains(raw, tagCaption) {
			return nil
		}
		sep = tagCaption
	}

	parts := strings.Split(raw, sep)
	blocks := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		blocks = append(blocks, sep+p)
	}
	return blocks
}

func parseBlock(b string) Caption {
	c := Caption{Title: untitled}

	if t, ok := between(b, tagTitle, tagCaption); ok {
		if t = cleanLine(t); t != "" {
			c.Title = t
		}
	}

	body, ok := between(b, tagCaption, tagCTA)
	if !ok {
		// No call to action: the body runs to the end of the block.
		if i := strings.Index(b, tagCaption); i >= 0 {
			body, ok = trimTrailingLabel(b[i+len(tagCaption):]), true
		}
	}
	if ok {
		c.Content = strings.TrimSpace(body)
	}

	if i := strings.Index(b, tagCTA); i >= 0 {
		cta := b[i+len(tagCTA):]
		if j := strings.Index(cta, "\n\n"); j >= 0 {
			cta = cta[:j]
		}
		c.CallToAction = cleanLine(trimTrailingLabel(cta))
	}
	return c
}

// between returns the text between the first open marker and the following
// close marker.
func between(s, open, close string) (string, bool) {
	i := strings.Index(s, open)
	if i < 0 {
		return "", false
	}
	rest := s[i+len(open):]
	j := strings.Index(rest, close)
	if j < 0 {
		return "", false
	}
	return rest[:j], true
}

// trimTrailingLabel drops a trailing "Caption 2:" style header that belongs
// to the next block.
func trimTrailingLabel(s string) string {
	s = strings.TrimRight(s, " \t\n")
	i := strings.LastIndexByte(s, '\n')
	last := strings.TrimSpace(s[i+1:])
	if i >= 0 && strings.HasPrefix(strings.ToLower(last), "caption") && strings.HasSuffix(last, ":") {
		return s[:i]
	}
	return s
}

// cleanLine trims whitespace and the markdown emphasis models like to add.
func cleanLine(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "*_")
	s = strings.TrimPrefix(s, ":")
	return strings.TrimSpace(s)
}

func parseJSONCaptions(raw string) ([]Caption, error) {
	list, err := jsonutil.ParseJSON[[]Caption](raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCaptions, err)
	}

	captions := make([]Caption, 0, len(list))
	for _, c := range list {
		c.Title = strings.TrimSpace(c.Title)
		c.Content = strings.TrimSpace(c.Content)
		c.CallToAction = strings.TrimSpace(c.CallToAction)
		if c.Content == "" && c.Title == "" {
			continue
		}
		if c.Title == "" {
			c.Title = untitled
		}
		c.ID = fmt.Sprintf("caption-%d", len(captions)+1)
		captions = append(captions, c)
	}
	if len(captions) == 0 {
		return nil, ErrNoCaptions
	}
	return captions, nil
}
