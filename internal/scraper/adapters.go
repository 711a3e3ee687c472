package scraper

import (
	"context"
	"fmt"
	"strings"

	"reactify-service/internal/entity"
)

// platformAdapter wraps the baseline fetcher with platform marker
// validation. A page that lacks every expected marker is
// UnsupportedStructure; the processor then falls back to the generic
// adapter once.
type platformAdapter struct {
	variant entity.PlatformVariant
	fetcher *Fetcher
	markers []string
}

func (a *platformAdapter) Variant() entity.PlatformVariant { return a.variant }

func (a *platformAdapter) Fetch(ctx context.Context, url string) (*entity.RawPage, error) {
	page, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	if len(a.markers) > 0 && !containsAny(page.HTML, a.markers) {
		return nil, entity.NewPipelineError(entity.StageScrape, entity.ErrUnsupportedStructure,
			fmt.Errorf("no %s markers found at %s", a.variant, url))
	}
	return page, nil
}

func containsAny(html string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(html, m) {
			return true
		}
	}
	return false
}

// genericAdapter accepts any fetchable page.
type genericAdapter struct {
	fetcher *Fetcher
}

func (a *genericAdapter) Variant() entity.PlatformVariant { return entity.PlatformGeneric }

func (a *genericAdapter) Fetch(ctx context.Context, url string) (*entity.RawPage, error) {
	return a.fetcher.Fetch(ctx, url)
}

// adapterMarkers are the per-platform structure checks, mirroring each
// platform's known DOM fingerprints.
var adapterMarkers = map[entity.PlatformVariant][]string{
	entity.PlatformFramer:      {"framerusercontent.com", "data-framer-"},
	entity.PlatformWebflow:     {"data-wf-site", "assets.website-files.com"},
	entity.PlatformWordPress:   {"wp-content/", "wp-includes/"},
	entity.PlatformShopify:     {"cdn.shopify.com", "Shopify.theme", "myshopify.com"},
	entity.PlatformWooCommerce: {"woocommerce", "wc-ajax"},
	entity.PlatformWix:         {"static.parastorage.com", "wix-first-paint"},
	entity.PlatformSquarespace: {"static1.squarespace.com", "SQUARESPACE_CONTEXT"},
	entity.PlatformReplit:      {"replit"},
	entity.PlatformBolt:        {"bolt"},
	entity.PlatformLovable:     {"lovable", "cdn.gpteng.co"},
	entity.PlatformNotion:      {"notion"},
	entity.PlatformGumroad:     {"gumroad"},
	entity.PlatformRocket:      {"rocket"},
}

// Set is the closed adapter set, dispatched by variant.
type Set struct {
	fetcher *Fetcher
}

func NewSet(fetcher *Fetcher) *Set {
	return &Set{fetcher: fetcher}
}

// ForVariant returns the adapter for the variant. Unknown variants get
// the generic adapter.
func (s *Set) ForVariant(v entity.PlatformVariant) Adapter {
	switch v {
	case entity.PlatformFramer, entity.PlatformWebflow, entity.PlatformWordPress,
		entity.PlatformShopify, entity.PlatformWooCommerce, entity.PlatformWix,
		entity.PlatformSquarespace, entity.PlatformReplit, entity.PlatformBolt,
		entity.PlatformLovable, entity.PlatformNotion, entity.PlatformGumroad,
		entity.PlatformRocket:
		return &platformAdapter{variant: v, fetcher: s.fetcher, markers: adapterMarkers[v]}
	default:
		return &genericAdapter{fetcher: s.fetcher}
	}
}

// Generic returns the fallback adapter used after an
// UnsupportedStructure failure.
func (s *Set) Generic() Adapter {
	return &genericAdapter{fetcher: s.fetcher}
}
