package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
)

func buildAtlasHTML(listings []atlasListing) string {
	payload := atlasNextData{}
	payload.Props.PageProps = &atlasPageProps{Listings: listings}
	jsonBytes, _ := json.Marshal(payload)
	return "<html><head></head><body><script id=\"__NEXT_DATA__\" type=\"application/json\">" + string(jsonBytes) + "</script></body></html>"
}

func TestHomeAtlasMergesSoldAndListedPages(t *testing.T) {
	t.Parallel()

	soldHTML := buildAtlasHTML([]atlasListing{
		{Address: "10 Ocean St, Bondi", Price: "$1.1m", Beds: 3, Baths: 2, PropertyType: "House", SoldDate: "15 Mar 2024"},
		{Address: "11 Ocean St, Bondi", Price: "Auction", Beds: 3, Baths: 2, PropertyType: "House"},
	})
	buyHTML := buildAtlasHTML([]atlasListing{
		{Address: "12 Ocean St, Bondi", Price: "950k", Beds: 2, Baths: 1, PropertyType: "Unit"},
		// Same address as the sold page; the sold record must win.
		{Address: "10 ocean st, Bondi", Price: "$1.2m", Beds: 3, Baths: 2, PropertyType: "House"},
	})

	rt := newStubRoundTripper(map[string]stubResponse{
		"https://www.homeatlas.com.au/sold/bondi-nsw-2026": {body: soldHTML},
		"https://www.homeatlas.com.au/buy/bondi-nsw-2026":  {body: buyHTML},
	}, nil)

	h := NewHomeAtlasProvider(HomeAtlasConfig{}, &http.Client{Transport: rt})
	comps := h.FetchComparables(context.Background(), Query{Suburb: "Bondi", State: "NSW", Postcode: "2026"})

	if len(comps) != 2 {
		t.Fatalf("expected 2 priced comparables across both pages, got %d", len(comps))
	}
	if comps[0].Price != 1100000 {
		t.Fatalf("expected sold price 1100000, got %v", comps[0].Price)
	}
	if comps[0].SoldDateRaw.IsZero() {
		t.Fatalf("expected sold timestamp parsed for sold page entry")
	}
	if comps[1].Price != 950000 {
		t.Fatalf("expected listed price 950000, got %v", comps[1].Price)
	}
	if !comps[1].SoldDateRaw.IsZero() {
		t.Fatalf("listed entries must not carry a sold timestamp")
	}
}

func TestHomeAtlasToleratesPartialPageFailure(t *testing.T) {
	t.Parallel()

	soldHTML := buildAtlasHTML([]atlasListing{
		{Address: "10 Ocean St, Bondi", Price: "$1.1m", Beds: 3, Baths: 2, PropertyType: "House", SoldDate: "15 Mar 2024"},
	})

	// Buy page missing entirely; sold page still contributes.
	rt := newStubRoundTripper(map[string]stubResponse{
		"https://www.homeatlas.com.au/sold/bondi-nsw": {body: soldHTML},
	}, nil)

	h := NewHomeAtlasProvider(HomeAtlasConfig{}, &http.Client{Transport: rt})
	comps := h.FetchComparables(context.Background(), Query{Suburb: "Bondi", State: "NSW"})

	if len(comps) != 1 {
		t.Fatalf("expected 1 comparable from sold page, got %d", len(comps))
	}
}

func TestHomeAtlasMalformedPageYieldsEmpty(t *testing.T) {
	t.Parallel()

	rt := newStubRoundTripper(map[string]stubResponse{
		"https://www.homeatlas.com.au/sold/bondi-nsw": {body: "<html><body>no data script</body></html>"},
		"https://www.homeatlas.com.au/buy/bondi-nsw":  {body: "<html><body><script id=\"__NEXT_DATA__\">{broken</script></body></html>"},
	}, nil)

	h := NewHomeAtlasProvider(HomeAtlasConfig{}, &http.Client{Transport: rt})
	comps := h.FetchComparables(context.Background(), Query{Suburb: "Bondi", State: "NSW"})
	if len(comps) != 0 {
		t.Fatalf("expected empty result for malformed pages, got %d", len(comps))
	}
}
