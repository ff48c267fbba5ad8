package scorer

import (
	"testing"

	"github.com/kestrelscan/leadscrape/internal/search"
)

func TestCleanCompany(t *testing.T) {
	tests := []struct {
		name    string
		company string
		want    string
	}{
		{"drops trailing inc", "Example Corp Inc", "examplecorp"},
		{"drops trailing ag", "Delta AG", "delta"},
		{"no suffix to drop", "Acme", "acme"},
		{"punctuation stripped", "Gamma, GmbH.", "gamma"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCompany(tt.company); got != tt.want {
				t.Errorf("CleanCompany(%q) = %q, want %q", tt.company, got, tt.want)
			}
		})
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	company, url := "Example Corp", "https://example.com/"

	first, err := Score(company, url)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	for i := 0; i < 5; i++ {
		got, err := Score(company, url)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}

		if got != first {
			t.Fatalf("Score not deterministic: run %d got %d, want %d", i, got, first)
		}
	}
}

func TestScoreExactMatchIsHigh(t *testing.T) {
	score, err := Score("Example Corp", "https://example.com/")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if score < 60 {
		t.Errorf("expected a high score for a near-exact match, got %d", score)
	}
}

func TestScorePenalizesSocialHosts(t *testing.T) {
	score, err := Score("Acme Inc", "https://linkedin.com/company/acme")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if score >= 60 {
		t.Errorf("expected linkedin.com to score below threshold after penalty, got %d", score)
	}
}

func TestScoreShortCompanyIsNeutral(t *testing.T) {
	score, err := Score("AB", "https://whatever.example/")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if score != neutralScore {
		t.Errorf("Score() for short company = %d, want %d", score, neutralScore)
	}
}

func TestScoreRejectsUnparseableURL(t *testing.T) {
	if _, err := Score("Example Corp", "://not a url"); err == nil {
		t.Error("expected an error for an unparseable URL")
	}
}

func TestBestPicksHighestScoreFirstOccurrenceWins(t *testing.T) {
	hits := []search.Hit{
		{Link: "https://linkedin.com/company/example"},
		{Link: "https://example.com/"},
		{Link: "https://example.org/"},
	}

	best, ok := Best("Example", hits)
	if !ok {
		t.Fatal("expected a best match")
	}

	if best.URL != "https://example.com/" {
		t.Errorf("Best() = %+v, want the first exact-ish match", best)
	}
}

func TestBestSkipsEmptyLinks(t *testing.T) {
	hits := []search.Hit{{Link: ""}}

	if _, ok := Best("Example", hits); ok {
		t.Error("expected no match when every hit has an empty link")
	}
}

func TestBestEmptyHits(t *testing.T) {
	if _, ok := Best("Example", nil); ok {
		t.Error("expected ok=false for no hits")
	}
}
