package httpclient

import (
	"strings"
	"testing"

	"github.com/kestrelscan/leadscrape/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxURLLength:          2000,
		BlockedHostSuffixes:   []string{"facebook.com", "linkedin.com"},
		BlockedPathExtensions: []string{".pdf", ".exe"},
	}
}

func TestValidateURL(t *testing.T) {
	cfg := testConfig()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "valid https", url: "https://example.com/about", wantErr: false},
		{name: "valid http", url: "http://example.com", wantErr: false},
		{name: "empty", url: "", wantErr: true},
		{name: "javascript scheme", url: "javascript:alert(1)", wantErr: true},
		{name: "data scheme", url: "data:text/html,hi", wantErr: true},
		{name: "file scheme", url: "file:///etc/passwd", wantErr: true},
		{name: "ftp scheme", url: "ftp://example.com/file", wantErr: true},
		{name: "missing host", url: "https:///path", wantErr: true},
		{name: "blocked host suffix", url: "https://www.facebook.com/page", wantErr: true},
		{name: "blocked extension", url: "https://example.com/file.pdf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateURL(cfg, tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateURL(%q) err = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateURLRejectsOverLength(t *testing.T) {
	cfg := testConfig()
	cfg.MaxURLLength = 30

	ok := "https://example.com/" + strings.Repeat("a", 10)
	tooLong := "https://example.com/" + strings.Repeat("a", 11)

	if err := validateURL(cfg, ok); err != nil {
		t.Errorf("expected url at boundary to be accepted, got %v", err)
	}

	if err := validateURL(cfg, tooLong); err == nil {
		t.Error("expected url over max length to be rejected")
	}
}
