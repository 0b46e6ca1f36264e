package source

import "time"

// SourceListing is one browsable list a source offers, such as "Popular"
type SourceListing struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Entry is a manga, novel or show as described by a source
type Entry struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Cover       string   `json:"cover,omitempty"`
	URL         string   `json:"url,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	Artists     []string `json:"artists,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Status      string   `json:"status,omitempty"`
	NSFW        bool     `json:"nsfw,omitempty"`
	Viewer      string   `json:"viewer,omitempty"`
}

// EntryResult is one page of entries
type EntryResult struct {
	Entries     []Entry `json:"entries"`
	HasNextPage bool    `json:"hasNextPage"`
}

// Listing is one page of a SourceListing
type Listing struct {
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name,omitempty"`
	Entries     []Entry `json:"entries"`
	HasNextPage bool    `json:"hasNextPage"`
}

// Chapter is a readable unit of a text or image entry
type Chapter struct {
	ID         string     `json:"id"`
	Title      string     `json:"title,omitempty"`
	Number     *float64   `json:"number,omitempty"`
	Volume     *float64   `json:"volume,omitempty"`
	Date       *time.Time `json:"date,omitempty"`
	Scanlators []string   `json:"scanlators,omitempty"`
	Language   string     `json:"language,omitempty"`
	URL        string     `json:"url,omitempty"`
	Locked     bool       `json:"locked,omitempty"`
}

// Episode is a watchable unit of a video entry
type Episode struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	Number    *float64   `json:"number,omitempty"`
	Season    *float64   `json:"season,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
	Thumbnail string     `json:"thumbnail,omitempty"`
	URL       string     `json:"url,omitempty"`
}

// TextChapter is the content of a text chapter
type TextChapter struct {
	Content string `json:"content"`
}

// Page is one image of an image chapter
type Page struct {
	Index  int    `json:"index"`
	URL    string `json:"url,omitempty"`
	Base64 string `json:"base64,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Stream is one playable video rendition
type Stream struct {
	URL     string            `json:"url"`
	Quality string            `json:"quality,omitempty"`
	Type    string            `json:"type,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Subtitle is one subtitle track
type Subtitle struct {
	URL      string `json:"url"`
	Language string `json:"language,omitempty"`
	Format   string `json:"format,omitempty"`
}

// EpisodeDetails is the playable content of an episode
type EpisodeDetails struct {
	Streams   []Stream   `json:"streams"`
	Subtitles []Subtitle `json:"subtitles,omitempty"`
}

// Filter is a search filter. Value carries the user's choice when the
// host sends filters back to the source.
type Filter struct {
	ID      string   `json:"id"`
	Title   string   `json:"title,omitempty"`
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
	Default any      `json:"default,omitempty"`
	Value   any      `json:"value,omitempty"`
}

// Setting is one user-configurable source setting
type Setting struct {
	Key     string   `json:"key"`
	Title   string   `json:"title"`
	Type    string   `json:"type"`
	Default any      `json:"default,omitempty"`
	Values  []string `json:"values,omitempty"`
	Titles  []string `json:"titles,omitempty"`
}

// SettingGroup is a titled section of settings
type SettingGroup struct {
	Title  string    `json:"title,omitempty"`
	Footer string    `json:"footer,omitempty"`
	Items  []Setting `json:"items"`
}

// Request is an outgoing media request a source may rewrite
type Request struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}
