// Package normalize turns a raw scraped page into the role-annotated
// intermediate representation consumed by the AI conversion step. The
// transform is deterministic: identical input always yields identical
// output.
package normalize

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"reactify-service/internal/entity"
)

// noiseSelectors are removed outright; they carry no layout or content
// meaning for component generation.
var noiseSelectors = []string{
	"script", "style", "noscript", "template",
	"iframe", "canvas",
	"link", "meta",
}

// badgeSelectors remove per-platform "made with" cruft, following each
// platform's badge markup.
var badgeSelectors = map[entity.PlatformVariant][]string{
	entity.PlatformFramer: {
		"#__framer-badge-container",
		`[data-framer-name="Made with Framer"]`,
		".framer-badge",
		`a[href*="framer.com/templates"]`,
	},
	entity.PlatformWebflow: {
		".w-webflow-badge",
		`a[href*="webflow.com?utm_campaign"]`,
	},
	entity.PlatformShopify: {
		".shopify-badge",
		".powered-by-shopify",
		".shopify-credits",
	},
	entity.PlatformWix: {
		"#WIX_ADS",
		`[data-testid="bannerLogo"]`,
	},
	entity.PlatformSquarespace: {
		".sqs-site-badge",
	},
	entity.PlatformWordPress: {
		`meta[name="generator"]`,
		".site-info .powered-by",
	},
	entity.PlatformReplit: {
		".replit-badge",
		`a[href*="replit.com/@"]`,
	},
	entity.PlatformBolt: {
		`a[href*="bolt.new"]`,
	},
	entity.PlatformLovable: {
		"#lovable-badge",
		`a[href*="lovable.dev"]`,
	},
	entity.PlatformNotion: {
		".notion-made-with",
	},
	entity.PlatformGumroad: {
		`a[href*="gumroad.com/features"]`,
	},
	entity.PlatformRocket: {
		".rocket-badge",
	},
}

// keptAttrs are the only attributes carried into the normalized tree.
var keptAttrs = []string{"id", "class", "href", "src", "alt", "type", "placeholder", "aria-label"}

const maxTextLen = 300

type Normalizer struct{}

func New() *Normalizer {
	return &Normalizer{}
}

// Normalize strips platform boilerplate, collapses redundant wrappers,
// tags semantic roles and resolves asset URLs to absolute form.
func (n *Normalizer) Normalize(page *entity.RawPage, variant entity.PlatformVariant) (*entity.NormalizedContent, error) {
	if strings.TrimSpace(page.HTML) == "" {
		return nil, entity.NewPipelineError(entity.StageNormalize, entity.ErrMalformedContent,
			fmt.Errorf("empty html for %s", page.URL))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, entity.NewPipelineError(entity.StageNormalize, entity.ErrMalformedContent,
			fmt.Errorf("parsing %s: %w", page.URL, err))
	}

	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}
	for _, sel := range badgeSelectors[variant] {
		doc.Find(sel).Remove()
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nil, entity.NewPipelineError(entity.StageNormalize, entity.ErrMalformedContent,
			fmt.Errorf("no body element in %s", page.URL))
	}

	base, err := url.Parse(page.URL)
	if err != nil {
		return nil, entity.NewPipelineError(entity.StageNormalize, entity.ErrMalformedContent,
			fmt.Errorf("base url %s: %w", page.URL, err))
	}

	var roots []entity.Element
	body.Children().Each(func(_ int, s *goquery.Selection) {
		if el, ok := buildElement(s, base, 0); ok {
			roots = append(roots, el)
		}
	})
	for i := range roots {
		roots[i].Role = classifyRole(roots[i], i, len(roots))
	}

	return &entity.NormalizedContent{
		URL:       page.URL,
		Title:     page.Title,
		Platform:  variant,
		Elements:  roots,
		AssetURLs: resolveAssets(base, page.AssetURLs),
	}, nil
}

const maxDepth = 12

// buildElement converts a goquery node into an Element, collapsing
// wrapper chains: a node with exactly one element child and no own text
// is replaced by that child.
func buildElement(s *goquery.Selection, base *url.URL, depth int) (entity.Element, bool) {
	node := s.Get(0)
	if node == nil || depth > maxDepth {
		return entity.Element{}, false
	}

	// collapse redundant single-child wrappers
	for isWrapper(s) {
		s = s.Children().First()
		if s.Get(0) == nil {
			return entity.Element{}, false
		}
	}

	tag := goquery.NodeName(s)
	el := entity.Element{
		Tag:   tag,
		Text:  ownText(s),
		Attrs: pickAttrs(s, base),
	}

	s.Children().Each(func(_ int, c *goquery.Selection) {
		if child, ok := buildElement(c, base, depth+1); ok {
			el.Children = append(el.Children, child)
		}
	})

	if el.Text == "" && len(el.Children) == 0 && len(el.Attrs) == 0 {
		return entity.Element{}, false
	}
	return el, true
}

func isWrapper(s *goquery.Selection) bool {
	tag := goquery.NodeName(s)
	if tag != "div" && tag != "span" {
		return false
	}
	if s.Children().Length() != 1 {
		return false
	}
	return ownText(s) == ""
}

// ownText is the node's direct text, excluding descendants.
func ownText(s *goquery.Selection) string {
	var parts []string
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			if t := strings.TrimSpace(c.Text()); t != "" {
				parts = append(parts, t)
			}
		}
	})
	return truncate(strings.Join(parts, " "), maxTextLen)
}

// truncate cuts s to at most limit bytes on a rune boundary.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func pickAttrs(s *goquery.Selection, base *url.URL) entity.Attrs {
	attrs := entity.Attrs{}
	for _, name := range keptAttrs {
		if v, ok := s.Attr(name); ok && strings.TrimSpace(v) != "" {
			v = strings.TrimSpace(v)
			if name == "href" || name == "src" {
				v = resolveURL(base, v)
			}
			attrs[name] = v
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

// classifyRole applies the fixed heuristic ruleset to a top-level
// section of the page.
func classifyRole(el entity.Element, index, total int) entity.SemanticRole {
	class := strings.ToLower(el.Attrs["class"] + " " + el.Attrs["id"])

	switch {
	case el.Tag == "nav" || el.Tag == "header" || strings.Contains(class, "nav") || strings.Contains(class, "menu"):
		return entity.RoleNavigation
	case el.Tag == "footer" || strings.Contains(class, "footer") || (index == total-1 && total > 2 && el.Tag == "div" && strings.Contains(class, "bottom")):
		return entity.RoleFooter
	case el.Tag == "form" || containsTag(el, "form"):
		return entity.RoleForm
	case strings.Contains(class, "hero") || strings.Contains(class, "banner") || (index == 0 && containsTag(el, "h1")):
		return entity.RoleHero
	case isCardList(el) || strings.Contains(class, "card") || strings.Contains(class, "grid"):
		return entity.RoleCardList
	default:
		return entity.RoleContent
	}
}

func containsTag(el entity.Element, tag string) bool {
	if el.Tag == tag {
		return true
	}
	for _, c := range el.Children {
		if containsTag(c, tag) {
			return true
		}
	}
	return false
}

// isCardList detects three or more structurally identical siblings.
func isCardList(el entity.Element) bool {
	if len(el.Children) < 3 {
		for _, c := range el.Children {
			if isCardList(c) {
				return true
			}
		}
		return false
	}
	first := structureSignature(el.Children[0])
	matches := 0
	for _, c := range el.Children {
		if structureSignature(c) == first {
			matches++
		}
	}
	return matches >= 3
}

// structureSignature fingerprints an element's shape ignoring text.
func structureSignature(el entity.Element) string {
	var b strings.Builder
	b.WriteString(el.Tag)
	b.WriteByte('(')
	for _, c := range el.Children {
		b.WriteString(c.Tag)
		b.WriteByte(',')
	}
	b.WriteByte(')')
	return b.String()
}

func resolveAssets(base *url.URL, assets []string) []string {
	if len(assets) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, a := range assets {
		resolved := resolveURL(base, a)
		if resolved == "" || seen[resolved] {
			continue
		}
		seen[resolved] = true
		out = append(out, resolved)
	}
	sort.Strings(out)
	return out
}

func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
