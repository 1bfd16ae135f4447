package wizard

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRecord_MarshalUnsetFieldsAsNull(t *testing.T) {
	data, err := json.Marshal(Record{Niche: "books"})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	got := string(data)
	for _, want := range []string{`"mediaUrl":null`, `"niche":"books"`, `"generatedCaptions":null`} {
		if !strings.Contains(got, want) {
			t.Errorf("Marshal() = %s, missing %s", got, want)
		}
	}
}

func TestRecord_EmptyCaptionListSurvivesJSON(t *testing.T) {
	r := Record{}.apply(SetCaptions(nil))
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var back Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if back.GeneratedCaptions == nil {
		t.Error("GeneratedCaptions = nil after round trip, want empty list")
	}
}

func TestSetMedia_TextOnly(t *testing.T) {
	r := Record{}.apply(SetMedia("", MediaTextOnly))
	if r.MediaURL != TextOnlyReference || r.MediaType != MediaTextOnly {
		t.Errorf("apply(SetMedia text-only) = %+v", r)
	}
}

func TestPatch_Validate(t *testing.T) {
	bad := MediaKind("audio")
	unknown := "myspace"
	known := "linkedin"
	tests := []struct {
		name    string
		patch   Patch
		wantErr bool
	}{
		{"empty", Patch{}, false},
		{"valid media", SetMedia("u", MediaImage), false},
		{"bad media", Patch{MediaType: &bad}, true},
		{"known platform", Patch{Platform: &known}, false},
		{"unknown platform", Patch{Platform: &unknown}, true},
		{"free text goal", SetGoal("Sell more mugs"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLookupPlatform(t *testing.T) {
	p, ok := LookupPlatform("instagram")
	if !ok || p.DirectShare {
		t.Errorf("LookupPlatform(instagram) = %+v, %v", p, ok)
	}
	p, ok = LookupPlatform("linkedin")
	if !ok || !p.DirectShare {
		t.Errorf("LookupPlatform(linkedin) = %+v, %v", p, ok)
	}
	if _, ok := LookupPlatform("friendster"); ok {
		t.Error("LookupPlatform(friendster) ok = true")
	}
}
