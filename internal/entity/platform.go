package entity

// PlatformVariant is the closed set of site builders the scraper understands.
type PlatformVariant string

const (
	PlatformFramer      PlatformVariant = "framer"
	PlatformWebflow     PlatformVariant = "webflow"
	PlatformWordPress   PlatformVariant = "wordpress"
	PlatformShopify     PlatformVariant = "shopify"
	PlatformWooCommerce PlatformVariant = "woocommerce"
	PlatformWix         PlatformVariant = "wix"
	PlatformSquarespace PlatformVariant = "squarespace"
	PlatformReplit      PlatformVariant = "replit"
	PlatformBolt        PlatformVariant = "bolt"
	PlatformLovable     PlatformVariant = "lovable"
	PlatformNotion      PlatformVariant = "notion"
	PlatformGumroad     PlatformVariant = "gumroad"
	PlatformRocket      PlatformVariant = "rocket"
	PlatformGeneric     PlatformVariant = "generic"
)

// Platforms lists every supported variant, generic last.
func Platforms() []PlatformVariant {
	return []PlatformVariant{
		PlatformFramer,
		PlatformWebflow,
		PlatformWordPress,
		PlatformShopify,
		PlatformWooCommerce,
		PlatformWix,
		PlatformSquarespace,
		PlatformReplit,
		PlatformBolt,
		PlatformLovable,
		PlatformNotion,
		PlatformGumroad,
		PlatformRocket,
		PlatformGeneric,
	}
}
