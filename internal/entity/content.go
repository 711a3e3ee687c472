package entity

// RawPage is the unprocessed output of a scraper adapter.
type RawPage struct {
	URL       string
	Title     string
	HTML      string
	AssetURLs []string
}

// SemanticRole classifies a normalized element for the AI conversion step.
type SemanticRole string

const (
	RoleNavigation SemanticRole = "navigation"
	RoleHero       SemanticRole = "hero"
	RoleCardList   SemanticRole = "card-list"
	RoleContent    SemanticRole = "content"
	RoleForm       SemanticRole = "form"
	RoleFooter     SemanticRole = "footer"
)

// Element is a node of the normalized semantic tree.
type Element struct {
	Tag      string       `json:"tag"`
	Role     SemanticRole `json:"role,omitempty"`
	Text     string       `json:"text,omitempty"`
	Attrs    Attrs        `json:"attrs,omitempty"`
	Children []Element    `json:"children,omitempty"`
}

type Attrs map[string]string

// NormalizedContent is the intermediate representation produced by the
// normalizer and consumed exactly once by the conversion requester.
type NormalizedContent struct {
	URL       string          `json:"url"`
	Title     string          `json:"title"`
	Platform  PlatformVariant `json:"platform"`
	Elements  []Element       `json:"elements"`
	AssetURLs []string        `json:"asset_urls,omitempty"`
}

// GeneratedComponent is one component emitted by the AI conversion service.
type GeneratedComponent struct {
	TSX   string `json:"tsx"`
	CSS   string `json:"css,omitempty"`
	Types string `json:"types,omitempty"`
}

// ConversionResult is the validated AI conversion output attached to a job.
type ConversionResult struct {
	Components   map[string]GeneratedComponent `json:"components"`
	Index        string                        `json:"index,omitempty"`
	Dependencies []string                      `json:"dependencies,omitempty"`
	Notes        []string                      `json:"notes,omitempty"`
}
