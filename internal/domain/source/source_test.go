package source

import (
	"context"
	"testing"
	"time"

	"github.com/GriffinCanCode/Shelf/backend/internal/bridge"
	"github.com/GriffinCanCode/Shelf/backend/internal/domain/manifest"
	"github.com/GriffinCanCode/Shelf/backend/internal/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const textGuest = `
plugin.getListings = function () { return [{ id: "popular", name: "Popular" }]; };
plugin.getListing = function (id, page) {
	return { id: id, entries: [{ id: "e" + page, title: "Entry " + page }], hasNextPage: page < 2 };
};
plugin.getSearchResults = async function (query, page, filters) {
	return { entries: [{ id: query, title: filters.length + " filters" }], hasNextPage: false };
};
plugin.getEntry = function (id) { return id === "gone" ? null : { id: id, title: "Title", tags: ["a", "b"] }; };
plugin.getFilters = function () { return [{ id: "genre", type: "select", options: ["action", "drama"] }]; };
plugin.getSettings = function () { return [{ title: "General", items: [{ key: "lang", title: "Language", type: "select", values: ["en"] }] }]; };
plugin.getChapters = function (id, page) { return [{ id: id + "-1", number: 1 }, { id: id + "-2", number: 2.5 }]; };
plugin.getChapterDetails = function (id) { return { content: "<p>" + id + "</p>" }; };
`

func load(t *testing.T, kind manifest.Kind, id, script string, timeout time.Duration) Source {
	t.Helper()
	sc, err := sandbox.New(sandbox.DefaultConfig(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, sc.Load(context.Background(), "code.js", script))

	m := manifest.Manifest{ID: id, Name: id, Version: "1", Kind: kind}
	src, err := New(m, sc, bridge.New(timeout, nil, nil))
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	return src
}

func TestTextSource(t *testing.T) {
	src := load(t, manifest.KindText, "demo", textGuest, time.Second)
	ctx := context.Background()

	text, ok := src.(TextSource)
	require.True(t, ok)
	_, isImage := src.(ImageSource)
	assert.False(t, isImage)

	listings, ok := src.GetListings(ctx)
	require.True(t, ok)
	assert.Equal(t, []SourceListing{{ID: "popular", Name: "Popular"}}, listings)

	page, ok := src.GetListing(ctx, "popular", 2)
	require.True(t, ok)
	assert.Equal(t, "popular", page.ID)
	assert.Equal(t, "e2", page.Entries[0].ID)
	assert.False(t, page.HasNextPage)

	results, ok := src.GetSearchResults(ctx, "berserk", 1, nil)
	require.True(t, ok)
	assert.Equal(t, "berserk", results.Entries[0].ID)
	assert.Equal(t, "0 filters", results.Entries[0].Title)

	entry, ok := src.GetEntry(ctx, "x")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, entry.Tags)

	_, ok = src.GetEntry(ctx, "gone")
	assert.False(t, ok)

	filters, ok := src.GetFilters(ctx)
	require.True(t, ok)
	assert.Equal(t, []string{"action", "drama"}, filters[0].Options)

	settings, ok := src.GetSettings(ctx)
	require.True(t, ok)
	assert.Equal(t, "lang", settings[0].Items[0].Key)

	chapters, ok := text.GetChapters(ctx, "x", 1)
	require.True(t, ok)
	require.Len(t, chapters, 2)
	assert.Equal(t, 2.5, *chapters[1].Number)

	content, ok := text.GetChapterDetails(ctx, "x-1", "x")
	require.True(t, ok)
	assert.Equal(t, "<p>x-1</p>", content.Content)
}

func TestImageAndVideoSources(t *testing.T) {
	ctx := context.Background()

	img := load(t, manifest.KindImage, "manga", `
plugin.getChapterDetails = function () { return [{ index: 0, url: "https://cdn/1.png" }, { index: 1, url: "https://cdn/2.png" }]; };
plugin.modifyImageRequest = function (req) { req.headers = { Referer: "https://site" }; return req; };
`, time.Second).(ImageSource)

	pages, ok := img.GetChapterDetails(ctx, "c", "e")
	require.True(t, ok)
	assert.Len(t, pages, 2)

	req, ok := img.ModifyImageRequest(ctx, Request{URL: "https://cdn/1.png"})
	require.True(t, ok)
	assert.Equal(t, "https://site", req.Headers["Referer"])
	assert.Equal(t, "https://cdn/1.png", req.URL)

	vid := load(t, manifest.KindVideo, "anime", `
plugin.getEpisodes = function (id) { return [{ id: id + "-ep1", number: 1 }]; };
plugin.getEpisodeDetails = function () { return { streams: [{ url: "https://v/1.m3u8", quality: "1080p" }] }; };
`, time.Second).(VideoSource)

	episodes, ok := vid.GetEpisodes(ctx, "show", 1)
	require.True(t, ok)
	assert.Equal(t, "show-ep1", episodes[0].ID)

	details, ok := vid.GetEpisodeDetails(ctx, "show-ep1", "show")
	require.True(t, ok)
	assert.Equal(t, "1080p", details.Streams[0].Quality)

	// unimplemented guest methods are absence
	_, ok = vid.ModifyVideoRequest(ctx, Request{URL: "x"})
	assert.False(t, ok)
	_, ok = vid.GetListings(ctx)
	assert.False(t, ok)
}

func TestNeverRespondingGuestIsAbsence(t *testing.T) {
	src := load(t, manifest.KindText, "slow", `plugin.getListings = function () { return new Promise(function () {}); };`, 100*time.Millisecond)

	start := time.Now()
	listings, ok := src.GetListings(context.Background())
	assert.False(t, ok)
	assert.Nil(t, listings)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 0, src.Context().Pending().Len())
}

func TestNewRejectsTrackers(t *testing.T) {
	sc, err := sandbox.New(sandbox.DefaultConfig(), nil, nil)
	require.NoError(t, err)
	defer sc.Close()

	_, err = New(manifest.Manifest{ID: "al", Kind: manifest.KindTracker}, sc, nil)
	assert.ErrorIs(t, err, ErrNotSource)
}

func TestEqual(t *testing.T) {
	a := load(t, manifest.KindText, "demo", "", time.Second)
	b := load(t, manifest.KindText, "demo", "", time.Second)
	c := load(t, manifest.KindImage, "demo", "", time.Second)

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
	assert.False(t, Equal(a, nil))
	assert.True(t, Equal(nil, nil))
	assert.Equal(t, manifest.KindImage, c.Kind())
	assert.Equal(t, "demo", c.Manifest().ID)
}
