package model

import "testing"

func TestParseLocation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw      string
		suburb   string
		state    string
		postcode string
	}{
		{"Bondi, NSW 2026", "Bondi", "NSW", "2026"},
		{"Bondi Beach, nsw 2026", "Bondi Beach", "NSW", "2026"},
		{"Bondi, 2026 NSW", "Bondi", "NSW", "2026"},
		{"Bondi", "Bondi", "", ""},
		{"Bondi, NSW", "Bondi", "NSW", ""},
		{"  ", "", "", ""},
	}

	for _, tc := range cases {
		suburb, state, postcode := ParseLocation(tc.raw)
		if suburb != tc.suburb || state != tc.state || postcode != tc.postcode {
			t.Fatalf("ParseLocation(%q)=(%q,%q,%q), want (%q,%q,%q)",
				tc.raw, suburb, state, postcode, tc.suburb, tc.state, tc.postcode)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()

	p := PropertyInput{Location: "Bondi, NSW 2026"}
	p.ApplyDefaults()
	if p.Beds != 3 || p.Baths != 2 || p.PropertyType != "House" {
		t.Fatalf("expected defaults 3/2/House, got %d/%d/%s", p.Beds, p.Baths, p.PropertyType)
	}
	if p.Suburb != "Bondi" || p.State != "NSW" || p.Postcode != "2026" {
		t.Fatalf("expected location parsed, got %q/%q/%q", p.Suburb, p.State, p.Postcode)
	}

	// Explicit values survive.
	p = PropertyInput{Location: "Manly, NSW 2095", Beds: 5, Baths: 3, PropertyType: "Unit"}
	p.ApplyDefaults()
	if p.Beds != 5 || p.Baths != 3 || p.PropertyType != "Unit" {
		t.Fatalf("explicit values must not be overwritten, got %d/%d/%s", p.Beds, p.Baths, p.PropertyType)
	}
}

func TestDensityClass(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"House":     DensityClassHouse,
		"Acreage":   DensityClassHouse,
		"":          DensityClassHouse,
		"Villa":     DensityClassTownhouse,
		"terrace":   DensityClassTownhouse,
		"Duplex":    DensityClassTownhouse,
		"Townhouse": DensityClassTownhouse,
		"Unit":      DensityClassUnit,
		"APARTMENT": DensityClassUnit,
		"flat":      DensityClassUnit,
		"Studio":    DensityClassUnit,
	}
	for raw, want := range cases {
		if got := DensityClass(raw); got != want {
			t.Fatalf("DensityClass(%q)=%q, want %q", raw, got, want)
		}
	}
}
