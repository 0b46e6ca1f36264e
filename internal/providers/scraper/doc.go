// Package scraper provides the HTML and XML tree used by plugin scripts.
//
// Built on specialized libraries:
//   - goquery and cascadia: CSS selectors
//   - htmlquery: XPath support for HTML
//   - bluemonday: HTML sanitization
//   - chardet and x/net/html/charset: character encoding detection
//
// Documents are parsed from strings that are already Unicode. Raw network
// bytes go through DecodeBody first.
//
// Example Usage:
//
//	doc, err := scraper.ParseHTML(body)
//	items, err := doc.Find("ul.manga > li a")
//	for _, a := range items {
//		href, _ := a.Attr("href")
//		fmt.Println(a.Text(), href)
//	}
package scraper
