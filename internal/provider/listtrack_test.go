package provider

import (
	"context"
	"net/http"
	"testing"
)

func TestListTrackFetchComparables(t *testing.T) {
	t.Parallel()

	body := `{"results":[
		{"displayAddress":"4 Park Ave, Bondi","priceText":"Sold $850k","bedrooms":2,"bathrooms":1,"carspaces":1,"landSize":0,"propertyType":"Unit","soldDate":"02 Feb 2024"},
		{"displayAddress":"5 Park Ave, Bondi","priceText":"Price withheld","bedrooms":3,"bathrooms":2,"propertyType":"House","soldDate":"10 Jan 2024"}
	]}`

	rt := newStubRoundTripper(map[string]stubResponse{
		"https://api.listtrack.com.au/listings?postcode=2026&state=NSW&status=sold&suburb=Bondi&type=Unit": {body: body},
	}, nil)

	l := NewListTrackProvider(ListTrackConfig{APIKey: "k"}, &http.Client{Transport: rt})
	comps := l.FetchComparables(context.Background(), Query{
		Suburb: "Bondi", State: "NSW", Postcode: "2026", PropertyType: "Unit",
	})

	if len(comps) != 1 {
		t.Fatalf("expected withheld price discarded, got %d comparables", len(comps))
	}
	if comps[0].Price != 850000 {
		t.Fatalf("expected 850000, got %v", comps[0].Price)
	}
	if comps[0].Source != "listtrack" {
		t.Fatalf("expected source listtrack, got %s", comps[0].Source)
	}
}

func TestListTrackNetworkFailureYieldsEmpty(t *testing.T) {
	t.Parallel()

	rt := newStubRoundTripper(map[string]stubResponse{}, nil)
	l := NewListTrackProvider(ListTrackConfig{}, &http.Client{Transport: rt})
	comps := l.FetchComparables(context.Background(), Query{Suburb: "Bondi", State: "NSW"})
	if len(comps) != 0 {
		t.Fatalf("expected empty result on 404, got %d", len(comps))
	}
}
