package partner

import (
	"math"
	"testing"
)

func TestFallbackPointIsStable(t *testing.T) {
	first := FallbackPoint("Europe", "Netherlands", "Deventer", "Saxion")
	second := FallbackPoint("Europe", "Netherlands", "Deventer", "Saxion")

	if math.Float64bits(first.Lon) != math.Float64bits(second.Lon) || math.Float64bits(first.Lat) != math.Float64bits(second.Lat) {
		t.Fatalf("FallbackPoint() not bit-identical: %+v vs %+v", first, second)
	}
	if !ContinentBBox("Europe").Contains(first) {
		t.Fatalf("FallbackPoint() = %+v outside Europe box", first)
	}

	other := FallbackPoint("Europe", "Netherlands", "Deventer", "Windesheim")
	if other == first {
		t.Fatalf("different names produced the same point")
	}
}

func TestFallbackPointStaysInContinentBox(t *testing.T) {
	continents := []string{"Europe", "asia", " Africa ", "North America", "South America", "Oceania", "Australia", "Antarctica", "Unknown"}
	for _, continent := range continents {
		box := ContinentBBox(continent)
		for _, name := range []string{"a", "b", "Université", "東京大学"} {
			p := FallbackPoint(continent, "Country", "City", name)
			if !box.Contains(p) {
				t.Fatalf("FallbackPoint(%q, %q) = %+v outside %+v", continent, name, p, box)
			}
		}
	}
}

func TestContinentBBoxDefaultsToWorld(t *testing.T) {
	if got := ContinentBBox("Atlantis"); got != worldBox {
		t.Fatalf("ContinentBBox(unknown) = %+v", got)
	}
	if got := ContinentBBox("OCEANIA"); got != ContinentBBox("australia") {
		t.Fatalf("oceania and australia should share a box")
	}
}

func TestHashToUnitMatchesFNV1a(t *testing.T) {
	// FNV-1a 32 of the empty string is the offset basis.
	if got := hashToUnit(""); got != 2166136261.0/4294967296.0 {
		t.Fatalf("hashToUnit(\"\") = %v", got)
	}
	// FNV-1a 32 of "a" is 0xe40c292c.
	if got := hashToUnit("a"); got != float64(0xe40c292c)/4294967296.0 {
		t.Fatalf("hashToUnit(\"a\") = %v", got)
	}

	// Characters outside the BMP hash as their UTF-16 surrogate pair.
	testCases := []struct {
		value string
		hash  uint32
	}{
		{value: "\U0001F600", hash: 0xcb31c4b8},
		{value: "Uni \U0001F393 Umeå", hash: 0xc87780fa},
	}
	for _, testCase := range testCases {
		if got := hashToUnit(testCase.value); got != float64(testCase.hash)/4294967296.0 {
			t.Fatalf("hashToUnit(%q) = %v, want %#x", testCase.value, got, testCase.hash)
		}
	}
}
