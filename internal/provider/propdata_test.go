package provider

import (
	"context"
	"net/http"
	"testing"
)

func TestPropDataFetchComparablesNormalizesPrices(t *testing.T) {
	t.Parallel()

	body := `{"comparables":[
		{"address":"1 Beach St, Bondi","price":"$1,250,000","beds":3,"baths":2,"cars":1,"landArea":320,"propertyType":"House","soldDate":"2024-03-15","distance":0.4},
		{"address":"2 Hill Rd, Bondi","price":980000,"beds":3,"baths":1,"propertyType":"House","soldDate":"2024-01-10","distance":1.2},
		{"address":"3 Vague Ave, Bondi","price":"Contact agent","beds":4,"baths":2,"propertyType":"House","soldDate":"2024-02-01"}
	]}`

	rt := newStubRoundTripper(map[string]stubResponse{
		"https://api.propdata.io/v1/comparables?baths=2&beds=3&propertyType=House&state=NSW&suburb=Bondi": {body: body},
	}, nil)

	p := NewPropDataProvider(PropDataConfig{APIKey: "test-key"}, &http.Client{Transport: rt})
	comps := p.FetchComparables(context.Background(), Query{
		Suburb: "Bondi", State: "NSW", Beds: 3, Baths: 2, PropertyType: "House",
	})

	if len(comps) != 2 {
		t.Fatalf("expected 2 priced comparables, got %d", len(comps))
	}
	if comps[0].Price != 1250000 {
		t.Fatalf("expected text price normalized to 1250000, got %v", comps[0].Price)
	}
	if comps[1].Price != 980000 {
		t.Fatalf("expected numeric price kept, got %v", comps[1].Price)
	}
	if comps[0].Source != "propdata" {
		t.Fatalf("expected source propdata, got %s", comps[0].Source)
	}
	if comps[0].SoldDateRaw.IsZero() {
		t.Fatalf("expected sold date timestamp parsed")
	}
}

func TestPropDataFetchComparablesSwallowsFailures(t *testing.T) {
	t.Parallel()

	rt := newStubRoundTripper(map[string]stubResponse{
		"https://api.propdata.io/v1/comparables?state=NSW&suburb=Bondi": {status: http.StatusBadGateway, body: "upstream down"},
	}, nil)

	p := NewPropDataProvider(PropDataConfig{APIKey: "test-key"}, &http.Client{Transport: rt})
	comps := p.FetchComparables(context.Background(), Query{Suburb: "Bondi", State: "NSW"})
	if len(comps) != 0 {
		t.Fatalf("expected empty result on non-2xx, got %d", len(comps))
	}

	// Missing API key short-circuits without any request.
	hits := rt.hits.Load()
	unauth := NewPropDataProvider(PropDataConfig{}, &http.Client{Transport: rt})
	if comps := unauth.FetchComparables(context.Background(), Query{Suburb: "Bondi", State: "NSW"}); len(comps) != 0 {
		t.Fatalf("expected empty result without api key, got %d", len(comps))
	}
	if rt.hits.Load() != hits {
		t.Fatalf("expected no request without api key")
	}
}

func TestPropDataFetchAutomatedValuation(t *testing.T) {
	t.Parallel()

	rt := newStubRoundTripper(map[string]stubResponse{
		"https://api.propdata.io/v1/avm?address=5+Beach+St%2C+Bondi&location=Bondi%2C+NSW+2026": {
			body: `{"estimate":1400000,"low":1300000,"high":1500000,"confidence":"high"}`,
		},
	}, nil)

	p := NewPropDataProvider(PropDataConfig{APIKey: "test-key"}, &http.Client{Transport: rt})

	avm := p.FetchAutomatedValuation(context.Background(), "5 Beach St, Bondi", "Bondi, NSW 2026")
	if avm == nil {
		t.Fatalf("expected avm estimate")
	}
	if avm.Estimate != 1400000 || avm.Low != 1300000 || avm.High != 1500000 {
		t.Fatalf("unexpected avm values: %+v", avm)
	}

	if got := p.FetchAutomatedValuation(context.Background(), "", "Bondi, NSW 2026"); got != nil {
		t.Fatalf("expected nil avm for empty address, got %+v", got)
	}
}
