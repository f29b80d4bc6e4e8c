package analyzer

import (
	"maps"
	"slices"
	"strings"
	"testing"
)

func TestKeywordMatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		keywords []string
		text     string
		want     []string
	}{
		{
			name:     "case insensitive whole word",
			keywords: []string{"bitcoin", "Escrow"},
			text:     "Welcome to the BITCOIN market. escrow available.",
			want:     []string{"bitcoin", "Escrow"},
		},
		{
			name:     "no partial words",
			keywords: []string{"bitcoin", "arm"},
			text:     "bitcoins and alarms",
			want:     []string{},
		},
		{
			name:     "punctuation is a boundary",
			keywords: []string{"drugs"},
			text:     "(drugs)",
			want:     []string{"drugs"},
		},
		{
			name:     "regex metacharacters are literal",
			keywords: []string{"a.b"},
			text:     "axb a.b",
			want:     []string{"a.b"},
		},
		{
			name:     "unicode letters",
			keywords: []string{"café", "naïve"},
			text:     "CAFÉ open, naïveté closed",
			want:     []string{"café"},
		},
		{
			name:     "blank and duplicate keywords",
			keywords: []string{"", "  ", "Tor", "tor"},
			text:     "tor network",
			want:     []string{"Tor"},
		},
		{
			name:     "no keywords",
			keywords: nil,
			text:     "anything",
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := NewKeywordMatcher(tt.keywords).Match(tt.text)
			if got == nil {
				t.Fatal("Match must not return nil")
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDocument(t *testing.T) {
	t.Parallel()

	const page = `<html><head>
		<title>  Hidden Wiki  </title>
		<meta name="Description" content="first">
		<meta name="description" content="second">
		<meta name="keywords" content="">
		<meta property="og:title" content="ignored">
		<meta name="robots">
		<style>.bitcoin { color: red }</style>
		<script>var bitcoin = 1;</script>
	</head><body><h1>Links</h1><p>market list</p></body></html>`

	doc, err := ParseDocument(page)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if doc.Title() != "Hidden Wiki" {
		t.Errorf("unexpected title %q", doc.Title())
	}

	wantMeta := map[string]string{"description": "second", "keywords": ""}
	if got := doc.Meta(); !maps.Equal(got, wantMeta) {
		t.Errorf("Meta() = %v, want %v", got, wantMeta)
	}

	text := doc.Text()
	if strings.Contains(text, "bitcoin") {
		t.Errorf("script and style contents must be excluded, got %q", text)
	}
	if !strings.Contains(text, "market list") || !strings.Contains(text, "Hidden Wiki") {
		t.Errorf("expected title and body text, got %q", text)
	}
	if doc.Text() != text {
		t.Error("Text must not modify the document")
	}
}

func TestExtractMetadata_NoTitle(t *testing.T) {
	t.Parallel()

	md, err := ExtractMetadata("<p>plain</p>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Title != "" || md.Meta == nil || len(md.Meta) != 0 {
		t.Errorf("unexpected metadata %+v", md)
	}
}
