package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reactify-service/internal/entity"
)

const storefrontHTML = `<html>
<head>
  <title>Demo Store</title>
  <link rel="stylesheet" href="/assets/theme.css">
  <script src="https://cdn.shopify.com/s/trekkie.js"></script>
</head>
<body><img src="/img/hero.png"><p>hello</p></body>
</html>`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetcher_ReturnsPageAndAssets(t *testing.T) {
	srv := serve(t, http.StatusOK, storefrontHTML)

	page, err := NewFetcher(5*time.Second).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Demo Store", page.Title)
	assert.Contains(t, page.AssetURLs, "/assets/theme.css")
	assert.Contains(t, page.AssetURLs, "https://cdn.shopify.com/s/trekkie.js")
	assert.Contains(t, page.AssetURLs, "/img/hero.png")
}

func TestFetcher_StatusClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   entity.ErrorKind
	}{
		{http.StatusForbidden, entity.ErrAccessDenied},
		{http.StatusUnauthorized, entity.ErrAccessDenied},
		{http.StatusTooManyRequests, entity.ErrQuotaExceeded},
		{http.StatusBadGateway, entity.ErrNetwork},
		{http.StatusNotFound, entity.ErrUnsupportedStructure},
	}

	for _, tc := range cases {
		srv := serve(t, tc.status, "")

		_, err := NewFetcher(5*time.Second).Fetch(context.Background(), srv.URL)
		require.Error(t, err, "status %d", tc.status)
		assert.Equal(t, tc.kind, entity.KindOf(err), "status %d", tc.status)
	}
}

func TestFetcher_ConnectionRefusedIsNetworkError(t *testing.T) {
	srv := serve(t, http.StatusOK, "")
	url := srv.URL
	srv.Close()

	_, err := NewFetcher(time.Second).Fetch(context.Background(), url)
	require.Error(t, err)
	assert.Equal(t, entity.ErrNetwork, entity.KindOf(err))
}

func TestPlatformAdapter_RejectsPagesWithoutMarkers(t *testing.T) {
	srv := serve(t, http.StatusOK, `<html><body><p>plain page</p></body></html>`)

	set := NewSet(NewFetcher(5 * time.Second))
	adapter := set.ForVariant(entity.PlatformShopify)

	_, err := adapter.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, entity.ErrUnsupportedStructure, entity.KindOf(err))
}

func TestPlatformAdapter_AcceptsMatchingPage(t *testing.T) {
	srv := serve(t, http.StatusOK, storefrontHTML)

	set := NewSet(NewFetcher(5 * time.Second))
	adapter := set.ForVariant(entity.PlatformShopify)

	page, err := adapter.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, entity.PlatformShopify, adapter.Variant())
	assert.Contains(t, page.HTML, "cdn.shopify.com")
}

func TestSet_UnknownVariantFallsBackToGeneric(t *testing.T) {
	set := NewSet(NewFetcher(5 * time.Second))
	assert.Equal(t, entity.PlatformGeneric, set.ForVariant("something-else").Variant())
	assert.Equal(t, entity.PlatformGeneric, set.Generic().Variant())
}
