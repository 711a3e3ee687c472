// Package platform classifies a source URL into one of the supported
// site-builder variants by checking platform signatures in a fixed
// priority order. Detection is deterministic and side-effect-free.
package platform

import (
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"reactify-service/internal/entity"
)

var ErrEmptyURL = errors.New("empty url")

// rule is one ordered signature check. host substrings match the URL
// host; markers match against the raw HTML sample; generatorPrefix
// matches <meta name="generator">.
type rule struct {
	variant         entity.PlatformVariant
	hosts           []string
	markers         []string
	generatorPrefix string
}

// rules are evaluated top to bottom; first match wins. WooCommerce must
// precede WordPress because every WooCommerce shop also carries the
// WordPress signature.
var rules = []rule{
	{
		variant: entity.PlatformWooCommerce,
		markers: []string{"woocommerce", "wc-ajax"},
	},
	{
		variant:         entity.PlatformShopify,
		hosts:           []string{".myshopify.com"},
		markers:         []string{"cdn.shopify.com", "Shopify.theme"},
		generatorPrefix: "Shopify",
	},
	{
		variant:         entity.PlatformFramer,
		hosts:           []string{".framer.website", ".framer.app"},
		markers:         []string{"framerusercontent.com", "data-framer-", "__framer-badge"},
		generatorPrefix: "Framer",
	},
	{
		variant:         entity.PlatformWebflow,
		hosts:           []string{".webflow.io"},
		markers:         []string{"data-wf-site", "data-wf-page", "assets.website-files.com"},
		generatorPrefix: "Webflow",
	},
	{
		variant:         entity.PlatformWix,
		hosts:           []string{".wixsite.com"},
		markers:         []string{"static.parastorage.com", "wix-first-paint"},
		generatorPrefix: "Wix.com",
	},
	{
		variant:         entity.PlatformSquarespace,
		hosts:           []string{".squarespace.com"},
		markers:         []string{"static1.squarespace.com", "Static.SQUARESPACE_CONTEXT"},
		generatorPrefix: "Squarespace",
	},
	{
		variant: entity.PlatformNotion,
		hosts:   []string{".notion.site", ".notion.so"},
		markers: []string{"notion-page-content", "notion.so/images"},
	},
	{
		variant: entity.PlatformGumroad,
		hosts:   []string{".gumroad.com", "gumroad.com"},
		markers: []string{"gumroad-product", "assets.gumroad.com"},
	},
	{
		variant: entity.PlatformReplit,
		hosts:   []string{".replit.app", ".repl.co"},
		markers: []string{"replit-badge"},
	},
	{
		variant: entity.PlatformBolt,
		hosts:   []string{".bolt.host", "bolt.new"},
		markers: []string{"made-with-bolt"},
	},
	{
		variant: entity.PlatformLovable,
		hosts:   []string{".lovable.app", ".lovableproject.com"},
		markers: []string{"lovable-badge", "cdn.gpteng.co"},
	},
	{
		variant: entity.PlatformRocket,
		hosts:   []string{".myrocket.site"},
		markers: []string{"rocket-badge"},
	},
	{
		variant:         entity.PlatformWordPress,
		markers:         []string{"wp-content/", "wp-includes/", "wp-json"},
		generatorPrefix: "WordPress",
	},
}

// Detect classifies rawURL, optionally using a fetched HTML sample. An
// empty htmlSample restricts detection to host signatures. Unrecognized
// input yields Generic, never an error; only a malformed URL fails.
func Detect(rawURL, htmlSample string) (entity.PlatformVariant, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", ErrEmptyURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", ErrEmptyURL
	}
	host := strings.ToLower(u.Host)

	generator := metaGenerator(htmlSample)

	for _, r := range rules {
		if r.matches(host, htmlSample, generator) {
			return r.variant, nil
		}
	}
	return entity.PlatformGeneric, nil
}

func (r rule) matches(host, html, generator string) bool {
	for _, h := range r.hosts {
		if strings.HasSuffix(host, h) || host == strings.TrimPrefix(h, ".") {
			return true
		}
	}
	if r.generatorPrefix != "" && generator != "" && strings.HasPrefix(generator, r.generatorPrefix) {
		return true
	}
	for _, m := range r.markers {
		if html != "" && strings.Contains(html, m) {
			return true
		}
	}
	return false
}

// metaGenerator pulls <meta name="generator" content="..."> from the
// sample. Parse failures just disable generator matching.
func metaGenerator(html string) string {
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	content, _ := doc.Find(`meta[name="generator"]`).First().Attr("content")
	return content
}
