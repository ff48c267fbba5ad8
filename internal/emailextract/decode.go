package emailextract

import (
	"encoding/base64"
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	atDotRe     = regexp.MustCompile(`(?i)([A-Z0-9._%+-]+)\s*(?:\[\s*at\s*\]|\(\s*at\s*\)|\bat\b)\s*((?:[A-Z0-9-]+\s*(?:\[\s*dot\s*\]|\(\s*dot\s*\)|\bdot\b)\s*)+[A-Z0-9-]+)`) //nolint:lll
	dotTokenRe  = regexp.MustCompile(`(?i)\s*(?:\[\s*dot\s*\]|\(\s*dot\s*\)|\bdot\b)\s*`)
	fromCharRe  = regexp.MustCompile(`fromCharCode\(([^)]+)\)`)
	rot13Re     = regexp.MustCompile(`[A-Za-z]{30,}`)
	base64Re    = regexp.MustCompile(`'([A-Za-z0-9+/=]{40,})'`)
	numberSplit = regexp.MustCompile(`\s*,\s*`)
)

// deobfuscateAtDot rewrites "user [at] host [dot] tld"-style text into
// "user@host.tld" so the regular email regex can find it.
func deobfuscateAtDot(text string) string {
	return atDotRe.ReplaceAllStringFunc(text, func(m string) string {
		parts := atDotRe.FindStringSubmatch(m)
		if len(parts) != 3 {
			return m
		}

		host := dotTokenRe.ReplaceAllString(parts[2], ".")
		host = strings.ReplaceAll(host, " ", "")

		return parts[1] + "@" + host
	})
}

// decodeCFEmail reverses Cloudflare's data-cfemail obfuscation: the first
// hex byte is the XOR key, and every following hex byte XORed with it
// yields one output character.
func decodeCFEmail(hexStr string) (string, bool) {
	if len(hexStr) < 4 || len(hexStr)%2 != 0 {
		return "", false
	}

	keyByte, err := strconv.ParseUint(hexStr[0:2], 16, 8)
	if err != nil {
		return "", false
	}

	key := byte(keyByte)

	var sb strings.Builder

	for i := 2; i < len(hexStr); i += 2 {
		b, err := strconv.ParseUint(hexStr[i:i+2], 16, 8)
		if err != nil {
			return "", false
		}

		sb.WriteByte(byte(b) ^ key)
	}

	return sb.String(), true
}

// encodeCFEmail is decodeCFEmail's inverse, used only by round-trip tests.
func encodeCFEmail(plain string, key byte) string {
	sb := strings.Builder{}
	sb.WriteString(strings.ToUpper(hexByte(key)))

	for i := 0; i < len(plain); i++ {
		sb.WriteString(strings.ToUpper(hexByte(plain[i] ^ key)))
	}

	return sb.String()
}

func hexByte(b byte) string {
	const hexDigits = "0123456789abcdef"

	return string([]byte{hexDigits[b>>4], hexDigits[b&0x0f]})
}

// decodeFromCharCode extracts JavaScript `fromCharCode(n1, n2, …)` literals
// and returns their decoded text, concatenated and space-separated.
func decodeFromCharCode(raw string) string {
	var sb strings.Builder

	for _, m := range fromCharRe.FindAllStringSubmatch(raw, -1) {
		for _, numStr := range numberSplit.Split(m[1], -1) {
			numStr = strings.TrimSpace(numStr)
			if numStr == "" {
				continue
			}

			n, err := strconv.Atoi(numStr)
			if err != nil {
				continue
			}

			sb.WriteRune(rune(n))
		}

		sb.WriteByte(' ')
	}

	return sb.String()
}

// rot13Candidates returns the ROT13 transform of every contiguous alphabetic
// run of 30 or more characters, as additional candidate text.
func rot13Candidates(raw string) string {
	var sb strings.Builder

	for _, block := range rot13Re.FindAllString(raw, -1) {
		sb.WriteString(rot13(block))
		sb.WriteByte(' ')
	}

	return sb.String()
}

func rot13(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+13)%26
		default:
			return r
		}
	}, s)
}

// base64Candidates returns the UTF-8 decoding of every single-quoted string
// of 40 or more base64 characters, as additional candidate text.
func base64Candidates(raw string) string {
	var sb strings.Builder

	for _, m := range base64Re.FindAllStringSubmatch(raw, -1) {
		decoded, err := base64.StdEncoding.DecodeString(m[1])
		if err != nil {
			continue
		}

		sb.Write(decoded)
		sb.WriteByte(' ')
	}

	return sb.String()
}

// unescapeEntities decodes HTML/unicode entities ("&amp;" etc.) in text.
func unescapeEntities(text string) string {
	return html.UnescapeString(text)
}
