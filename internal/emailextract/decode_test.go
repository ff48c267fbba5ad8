package emailextract

import (
	"encoding/base64"
	"math/rand"
	"strings"
	"testing"
)

func TestDeobfuscateAtDot(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bracket form", "contact [at] example [dot] com", "contact@example.com"},
		{"paren form", "sales (at) example (dot) org", "sales@example.org"},
		{"bare words", "hello at example dot co dot uk", "hello@example.co.uk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deobfuscateAtDot(tt.in); got != tt.want {
				t.Errorf("deobfuscateAtDot(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCFEmailRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	samples := []string{"a@b.com", "contact@example.com", "x@y.co.uk", "info@delta.ag"}

	for _, plain := range samples {
		for i := 0; i < 5; i++ {
			key := byte(rng.Intn(256))

			encoded := encodeCFEmail(plain, key)

			decoded, ok := decodeCFEmail(encoded)
			if !ok {
				t.Fatalf("decodeCFEmail(%q) failed for key %d", encoded, key)
			}

			if decoded != plain {
				t.Errorf("round trip for %q key %d = %q, want %q", plain, key, decoded, plain)
			}
		}
	}
}

func TestDecodeCFEmailRejectsOddLength(t *testing.T) {
	if _, ok := decodeCFEmail("abc"); ok {
		t.Error("expected odd-length hex to be rejected")
	}
}

func TestDecodeCFEmailRejectsTooShort(t *testing.T) {
	if _, ok := decodeCFEmail("ab"); ok {
		t.Error("expected a key-only string to be rejected")
	}
}

func TestDecodeFromCharCode(t *testing.T) {
	raw := `<script>document.write(String.fromCharCode(104,105,64,101,120,46,99,111,109))</script>`

	got := decodeFromCharCode(raw)
	if !strings.Contains(got, "hi@ex.com") {
		t.Errorf("decodeFromCharCode() = %q, want it to contain hi@ex.com", got)
	}
}

func TestRot13Candidates(t *testing.T) {
	plain := "contactusatexamplecomfornoreasonatallwhatsoever"
	encoded := rot13(plain)

	got := rot13Candidates(encoded)
	if !strings.Contains(got, plain) {
		t.Errorf("rot13Candidates() = %q, want it to contain %q", got, plain)
	}
}

func TestRot13CandidatesSkipsShortRuns(t *testing.T) {
	if got := rot13Candidates("short"); got != "" {
		t.Errorf("rot13Candidates() of a short run = %q, want empty", got)
	}
}

func TestBase64Candidates(t *testing.T) {
	const plain = "reach us at contact@example.com for more information please"

	encoded := "'" + base64.StdEncoding.EncodeToString([]byte(plain)) + "'"

	got := base64Candidates(encoded)
	if !strings.Contains(got, plain) {
		t.Errorf("base64Candidates() = %q, want it to contain %q", got, plain)
	}
}

func TestUnescapeEntities(t *testing.T) {
	if got := unescapeEntities("a&#64;b&amp;c"); got != "a@b&c" {
		t.Errorf("unescapeEntities() = %q, want a@b&c", got)
	}
}
