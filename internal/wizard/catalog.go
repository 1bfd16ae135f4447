package wizard

// Platform describes a social network the captions can target.
type Platform struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// DirectShare is false where the network does not allow posting through
	// its web API; the client offers a download instead.
	DirectShare bool `json:"directShareSupported"`
}

// Option is a selectable goal or tone.
type Option struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Platforms lists the supported networks in display order.
var Platforms = []Platform{
	{ID: "linkedin", Name: "LinkedIn", DirectShare: true},
	{ID: "twitter", Name: "Twitter", DirectShare: true},
	{ID: "facebook", Name: "Facebook", DirectShare: true},
	{ID: "instagram", Name: "Instagram", DirectShare: false},
	{ID: "tiktok", Name: "TikTok", DirectShare: false},
	{ID: "youtube", Name: "YouTube", DirectShare: false},
}

// Goals lists the suggested goals. The record stores the goal name.
var Goals = []Option{
	{ID: "grow-audience", Name: "Grow Audience", Description: "Expand your follower base and reach"},
	{ID: "drive-sales", Name: "Drive Sales", Description: "Convert followers into customers"},
	{ID: "boost-engagement", Name: "Boost Engagement", Description: "Increase likes, comments and shares"},
	{ID: "share-knowledge", Name: "Share Knowledge", Description: "Educate and provide value"},
	{ID: "brand-awareness", Name: "Brand Awareness", Description: "Increase visibility and recognition"},
	{ID: "build-community", Name: "Build Community", Description: "Foster relationships with followers"},
}

// Tones lists the suggested tones. The record stores the tone name.
var Tones = []Option{
	{ID: "professional", Name: "Professional", Description: "Formal and business-oriented tone"},
	{ID: "friendly", Name: "Friendly", Description: "Warm and approachable tone"},
	{ID: "casual", Name: "Casual", Description: "Relaxed and conversational tone"},
	{ID: "educational", Name: "Educational", Description: "Informative and instructional tone"},
	{ID: "energetic", Name: "Energetic", Description: "Dynamic and exciting tone"},
	{ID: "creative", Name: "Creative", Description: "Imaginative and artistic tone"},
}

// LookupPlatform finds a platform by id.
func LookupPlatform(id string) (Platform, bool) {
	for _, p := range Platforms {
		if p.ID == id {
			return p, true
		}
	}
	return Platform{}, false
}
