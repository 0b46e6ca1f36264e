package scraper

import (
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DetectCharset detects and returns charset from raw bytes
func DetectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// DecodeBody converts a response body to a UTF-8 string. The declared
// Content-Type charset wins, then any <meta charset>; statistical detection
// only runs when the bytes are not valid UTF-8 and no other encoding was
// declared.
func DecodeBody(body []byte, contentType string) string {
	if len(body) == 0 {
		return ""
	}

	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if !certain && utf8.Valid(body) {
		return string(body)
	}
	// windows-1252 is also the fallback when nothing was declared
	if !certain && name == "windows-1252" {
		detectedName := DetectCharset(body)
		if detected, canonical := charset.Lookup(detectedName); detected != nil {
			enc, name = detected, canonical
		}
	}
	// a leading BOM would otherwise reach JSON.parse
	if name == "utf-8" {
		enc = unicode.UTF8BOM
	}

	decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
