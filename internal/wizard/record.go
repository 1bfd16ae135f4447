package wizard

import (
	"encoding/json"
	"fmt"

	"github.com/fpang/caption-wizard/internal/caption"
)

// MediaKind is the kind of media attached in step 1.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaTextOnly MediaKind = "text-only"
)

// TextOnlyReference is the media reference stored when the user opts out of
// uploading media. Step 1 needs both a reference and a kind, so the text-only
// choice carries this placeholder instead of a URL.
const TextOnlyReference = "text-only:"

// Valid reports whether k is one of the supported media kinds.
func (k MediaKind) Valid() bool {
	switch k {
	case MediaImage, MediaVideo, MediaTextOnly:
		return true
	}
	return false
}

// Record is the data collected by the wizard. An empty string (or a nil
// caption list) means the field has not been provided yet.
type Record struct {
	MediaURL          string
	MediaType         MediaKind
	Niche             string
	Platform          string
	Goal              string
	Tone              string
	GeneratedCaptions []caption.Caption
}

// recordJSON is the persisted shape. Unset fields are written as null so the
// entry stays compatible with what the browser client stores.
type recordJSON struct {
	MediaURL          *string           `json:"mediaUrl"`
	MediaType         *string           `json:"mediaType"`
	Niche             *string           `json:"niche"`
	Platform          *string           `json:"platform"`
	Goal              *string           `json:"goal"`
	Tone              *string           `json:"tone"`
	GeneratedCaptions []caption.Caption `json:"generatedCaptions"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		MediaURL:          nullable(r.MediaURL),
		MediaType:         nullable(string(r.MediaType)),
		Niche:             nullable(r.Niche),
		Platform:          nullable(r.Platform),
		Goal:              nullable(r.Goal),
		Tone:              nullable(r.Tone),
		GeneratedCaptions: r.GeneratedCaptions,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Record{
		MediaURL:          deref(raw.MediaURL),
		MediaType:         MediaKind(deref(raw.MediaType)),
		Niche:             deref(raw.Niche),
		Platform:          deref(raw.Platform),
		Goal:              deref(raw.Goal),
		Tone:              deref(raw.Tone),
		GeneratedCaptions: raw.GeneratedCaptions,
	}
	return nil
}

// IsEmpty reports whether no field has been set.
func (r Record) IsEmpty() bool {
	return r.MediaURL == "" && r.MediaType == "" && r.Niche == "" && r.Platform == "" &&
		r.Goal == "" && r.Tone == "" && r.GeneratedCaptions == nil
}

// Patch is a partial update. Nil pointers and empty strings are ignored when
// merging, so a patch can only add or replace values, never clear them.
type Patch struct {
	MediaURL          *string           `json:"mediaUrl,omitempty"`
	MediaType         *MediaKind        `json:"mediaType,omitempty"`
	Niche             *string           `json:"niche,omitempty"`
	Platform          *string           `json:"platform,omitempty"`
	Goal              *string           `json:"goal,omitempty"`
	Tone              *string           `json:"tone,omitempty"`
	GeneratedCaptions []caption.Caption `json:"generatedCaptions,omitempty"`
}

// SetMedia returns a patch for step 1.
func SetMedia(url string, kind MediaKind) Patch {
	if kind == MediaTextOnly && url == "" {
		url = TextOnlyReference
	}
	return Patch{MediaURL: &url, MediaType: &kind}
}

// SetNiche returns a patch for step 2.
func SetNiche(niche string) Patch { return Patch{Niche: &niche} }

// SetPlatform returns a patch for step 3.
func SetPlatform(id string) Patch { return Patch{Platform: &id} }

// SetGoal returns a patch for step 4.
func SetGoal(goal string) Patch { return Patch{Goal: &goal} }

// SetTone returns a patch for step 5.
func SetTone(tone string) Patch { return Patch{Tone: &tone} }

// SetCaptions returns a patch for step 6. A nil slice is stored as an empty
// list so that the step counts as complete.
func SetCaptions(captions []caption.Caption) Patch {
	if captions == nil {
		captions = []caption.Caption{}
	}
	return Patch{GeneratedCaptions: captions}
}

// Validate checks the enumerated fields of the patch.
func (p Patch) Validate() error {
	if p.MediaType != nil && *p.MediaType != "" && !p.MediaType.Valid() {
		return fmt.Errorf("invalid mediaType %q: must be image, video or text-only", *p.MediaType)
	}
	if p.Platform != nil && *p.Platform != "" {
		if _, ok := LookupPlatform(*p.Platform); !ok {
			return fmt.Errorf("unsupported platform %q", *p.Platform)
		}
	}
	return nil
}

// apply merges p into r and returns the merged record.
func (r Record) apply(p Patch) Record {
	set := func(dst *string, src *string) {
		if src != nil && *src != "" {
			*dst = *src
		}
	}
	set(&r.MediaURL, p.MediaURL)
	if p.MediaType != nil && *p.MediaType != "" {
		r.MediaType = *p.MediaType
	}
	set(&r.Niche, p.Niche)
	set(&r.Platform, p.Platform)
	set(&r.Goal, p.Goal)
	set(&r.Tone, p.Tone)
	if p.GeneratedCaptions != nil {
		r.GeneratedCaptions = make([]caption.Caption, len(p.GeneratedCaptions))
		copy(r.GeneratedCaptions, p.GeneratedCaptions)
	}
	return r
}
