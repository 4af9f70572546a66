package content

import (
	"testing"
)

func TestPassageID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"JHN.3.16", "JHN.3.16", false},
		{"PSA.23.1-6", "PSA.23.1-PSA.23.6", false},
		{"1CO.13.4-7", "1CO.13.4-1CO.13.7", false},
		{"GEN.1.1-GEN.1.3", "GEN.1.1-GEN.1.3", false},
		{"JHN.3", "", true},
		{"JHN.3.16-", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := PassageID(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("PassageID(%q) err = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("PassageID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCuratedIsWellFormed(t *testing.T) {
	t.Parallel()
	items := Curated()
	if len(items) != 40 {
		t.Fatalf("curated list has %d items", len(items))
	}
	seen := map[string]bool{}
	for _, it := range items {
		if _, err := PassageID(it.Reference); err != nil {
			t.Fatalf("bad reference %q: %v", it.Reference, err)
		}
		if it.Label == "" || seen[it.Reference] {
			t.Fatalf("bad or duplicate item %+v", it)
		}
		seen[it.Reference] = true
	}
}

func TestAtWraps(t *testing.T) {
	t.Parallel()
	n := len(Curated())
	if At(0) != At(n) || At(1) != At(n+1) || At(-1) != At(n-1) {
		t.Fatal("At must wrap modulo the list length")
	}
}

func TestCommonEnglishAndResolve(t *testing.T) {
	t.Parallel()
	all := []Version{
		{ID: "a", Abbreviation: "engASV", Name: "American Standard Version", Language: "eng"},
		{ID: "b", Abbreviation: "engKJV", Name: "King James (Authorised) Version", Language: "eng"},
		{ID: "c", Abbreviation: "RVR09", Name: "Reina Valera 1909", Language: "spa"},
		{ID: "d", Abbreviation: "WEB", Name: "World English Bible", Language: "eng"},
		{ID: "e", Abbreviation: "FBV", Name: "Free Bible Version", Language: "eng"},
		{ID: "f", Abbreviation: "WEB", Name: "Wessex English Bible", Language: "xyz"},
	}
	got := CommonEnglish(all)
	ids := ""
	for _, v := range got {
		ids += v.ID
	}
	if ids != "bdae" {
		t.Fatalf("CommonEnglish order = %q", ids)
	}

	for in, want := range map[string]string{"b": "b", "web": "d", " engKJV ": "b", "rvr09": "c"} {
		v, err := Resolve(all, in)
		if err != nil || v.ID != want {
			t.Fatalf("Resolve(%q) = %+v, %v", in, v, err)
		}
	}
	if _, err := Resolve(all, "NIV"); err != ErrUnknownVersion {
		t.Fatalf("expected ErrUnknownVersion, got %v", err)
	}
}
