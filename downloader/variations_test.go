package downloader

import (
	"math/rand"
	"strings"
	"testing"
)

func TestCatalogShape(t *testing.T) {
	if len(variationCatalog) != 10 {
		t.Fatalf("catalog has %d theme groups, want 10", len(variationCatalog))
	}
	if len(flatCatalog) != 150 {
		t.Fatalf("flattened catalog has %d templates, want 150", len(flatCatalog))
	}
	for _, template := range flatCatalog {
		if !strings.Contains(template, keywordPlaceholder) {
			t.Fatalf("template %q missing keyword placeholder", template)
		}
	}
}

func TestVariationCount(t *testing.T) {
	tests := []struct {
		maxNum int
		want   int
	}{
		{maxNum: 1, want: 3},
		{maxNum: 14, want: 3},
		{maxNum: 15, want: 3},
		{maxNum: 50, want: 10},
		{maxNum: 100, want: 20},
		{maxNum: 10000, want: len(flatCatalog)},
	}
	for _, tt := range tests {
		if got := variationCount(tt.maxNum); got != tt.want {
			t.Fatalf("variationCount(%d) = %d, want %d", tt.maxNum, got, tt.want)
		}
	}
}

func TestSelectVariationsAppliesKeyword(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	selected := selectVariations(rng, "tabby cat", 50)

	if len(selected) != 10 {
		t.Fatalf("selected %d variations for maxNum=50, want 10", len(selected))
	}
	seen := make(map[string]struct{})
	for _, v := range selected {
		if !strings.Contains(v, "tabby cat") {
			t.Fatalf("variation %q does not contain the keyword", v)
		}
		if strings.Contains(v, keywordPlaceholder) {
			t.Fatalf("variation %q still contains the placeholder", v)
		}
		if _, dup := seen[v]; dup {
			t.Fatalf("variation %q selected twice", v)
		}
		seen[v] = struct{}{}
	}
}

func TestFallbackTermsOrder(t *testing.T) {
	terms := fallbackTerms("cat")
	want := []string{"cat image", "cat photo", "cat high quality", "cat closeup", "cat detailed"}
	if len(terms) != len(want) {
		t.Fatalf("got %d fallback terms, want %d", len(terms), len(want))
	}
	for i := range want {
		if terms[i] != want[i] {
			t.Fatalf("term %d = %q, want %q", i, terms[i], want[i])
		}
	}
}

func TestAlternateTermEscalation(t *testing.T) {
	seen := make(map[string]struct{})
	for retry := 1; retry <= len(escalationTerms); retry++ {
		term := alternateTerm("cat", retry)
		if !strings.Contains(term, "cat") {
			t.Fatalf("retry %d term %q missing keyword", retry, term)
		}
		if term == "cat" {
			t.Fatalf("retry %d produced the unmodified keyword", retry)
		}
		if _, dup := seen[term]; dup {
			t.Fatalf("retry %d reused term %q", retry, term)
		}
		seen[term] = struct{}{}
	}

	if got := alternateTerm("cat", 0); got != "cat" {
		t.Fatalf("retry 0 should return the keyword unchanged, got %q", got)
	}
}
