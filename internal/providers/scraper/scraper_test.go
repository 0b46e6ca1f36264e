package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const listing = `<html><body>
<ul class="manga">
  <li data-id="1"><a href="/m/one">One Piece</a></li>
  <li data-id="2"><a href="/m/two">  Berserk </a></li>
</ul>
<div id="desc"><p>Hello <b>world</b></p></div>
</body></html>`

func TestFind(t *testing.T) {
	doc, err := ParseHTML(listing)
	require.NoError(t, err)

	items, err := doc.Find("ul.manga > li a")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "a", items[0].Tag())
	assert.Equal(t, "One Piece", items[0].Text())
	assert.Equal(t, "Berserk", items[1].Text())

	href, ok := items[1].Attr("href")
	assert.True(t, ok)
	assert.Equal(t, "/m/two", href)

	_, ok = items[1].Attr("title")
	assert.False(t, ok)
}

func TestFirstAndChildren(t *testing.T) {
	doc, err := ParseHTML(listing)
	require.NoError(t, err)

	ul, err := doc.First("ul")
	require.NoError(t, err)
	require.NotNil(t, ul)
	assert.Len(t, ul.Children(), 2)
	assert.Equal(t, map[string]string{"class": "manga"}, ul.Attrs())

	missing, err := doc.First("table")
	require.NoError(t, err)
	assert.Nil(t, missing)

	li, err := ul.First("li:nth-child(2)")
	require.NoError(t, err)
	id, _ := li.Attr("data-id")
	assert.Equal(t, "2", id)
	assert.Equal(t, "ul", li.Parent().Tag())
}

func TestInvalidSelector(t *testing.T) {
	doc, err := ParseHTML(listing)
	require.NoError(t, err)

	_, err = doc.Find("ul[[")
	assert.ErrorIs(t, err, ErrInvalidSelector)
}

func TestXPath(t *testing.T) {
	doc, err := ParseHTML(listing)
	require.NoError(t, err)

	links, err := doc.XPath("//li/a")
	require.NoError(t, err)
	assert.Len(t, links, 2)

	desc, err := doc.Root().XPathOne("//div[@id='desc']")
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.Equal(t, "Hello world", desc.Text())
	assert.Equal(t, "<p>Hello <b>world</b></p>", desc.HTML())
	assert.True(t, strings.HasPrefix(desc.OuterHTML(), `<div id="desc">`))

	_, err = doc.XPath("//li[")
	assert.ErrorIs(t, err, ErrInvalidXPath)
}

func TestParseXML(t *testing.T) {
	doc, err := ParseXML(`<?xml version="1.0" encoding="UTF-8"?>
<rss><channel><item><title>Chapter 12</title></item><item><title>Chapter 13</title></item></channel></rss>`)
	require.NoError(t, err)

	titles, err := doc.Find("item title")
	require.NoError(t, err)
	require.Len(t, titles, 2)
	assert.Equal(t, "Chapter 13", titles[1].Text())
}

func TestParseTooLarge(t *testing.T) {
	_, err := ParseHTML(strings.Repeat("a", MaxHTMLSize+1))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDecodeBody(t *testing.T) {
	assert.Equal(t, "", DecodeBody(nil, "text/html"))
	assert.Equal(t, "plain ascii", DecodeBody([]byte("plain ascii"), ""))
	assert.Equal(t, "héllo", DecodeBody([]byte("héllo"), "text/html; charset=utf-8"))

	latin1, err := charmap.ISO8859_1.NewEncoder().String("café crème")
	require.NoError(t, err)
	assert.Equal(t, "café crème", DecodeBody([]byte(latin1), "text/html; charset=iso-8859-1"))

	meta := `<html><head><meta charset="iso-8859-1"></head><body>` + latin1 + `</body></html>`
	assert.Contains(t, DecodeBody([]byte(meta), "text/html"), "café crème")

	bom := append([]byte("\xef\xbb\xbf"), `{"ok":true}`...)
	assert.Equal(t, `{"ok":true}`, DecodeBody(bom, "application/json"))
	assert.Equal(t, `{"ok":true}`, DecodeBody(bom, "application/json; charset=utf-8"))
}

func TestSanitizer(t *testing.T) {
	s := NewSanitizer()

	clean := s.Sanitize(`<p onclick="x()">Hi<script>alert(1)</script> <a href="https://example.com">link</a></p>`)
	assert.NotContains(t, clean, "script")
	assert.NotContains(t, clean, "onclick")
	assert.Contains(t, clean, `href="https://example.com"`)

	assert.Equal(t, "Tom & Jerry go home", s.Strip("<p>Tom &amp; <b>Jerry</b></p>\n\n<p>go   home</p>"))
}
