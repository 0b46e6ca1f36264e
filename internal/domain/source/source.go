package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/GriffinCanCode/Shelf/backend/internal/bridge"
	"github.com/GriffinCanCode/Shelf/backend/internal/domain/manifest"
	"github.com/GriffinCanCode/Shelf/backend/internal/sandbox"
)

var ErrNotSource = errors.New("package is not a content source")

// Base is the method set every source kind shares
type Base interface {
	GetListings(ctx context.Context) ([]SourceListing, bool)
	GetListing(ctx context.Context, listingID string, page int) (*Listing, bool)
	GetSearchResults(ctx context.Context, query string, page int, filters []Filter) (*EntryResult, bool)
	GetEntry(ctx context.Context, id string) (*Entry, bool)
	GetFilters(ctx context.Context) ([]Filter, bool)
	GetSettings(ctx context.Context) ([]SettingGroup, bool)
}

// Source is a loaded content source. The set of implementations is closed:
// TextSource, ImageSource and VideoSource.
type Source interface {
	Base
	Manifest() manifest.Manifest
	ID() string
	Kind() manifest.Kind
	Context() *sandbox.Context
	Close() error
	sealed()
}

// TextSource serves novels; chapter details are HTML
type TextSource interface {
	Source
	GetChapters(ctx context.Context, id string, page int) ([]Chapter, bool)
	GetChapterDetails(ctx context.Context, id, entryID string) (*TextChapter, bool)
}

// ImageSource serves manga and comics; chapter details are pages
type ImageSource interface {
	Source
	GetChapters(ctx context.Context, id string, page int) ([]Chapter, bool)
	GetChapterDetails(ctx context.Context, id, entryID string) ([]Page, bool)
	ModifyImageRequest(ctx context.Context, req Request) (*Request, bool)
}

// VideoSource serves shows
type VideoSource interface {
	Source
	GetEpisodes(ctx context.Context, id string, page int) ([]Episode, bool)
	GetEpisodeDetails(ctx context.Context, id, entryID string) (*EpisodeDetails, bool)
	ModifyVideoRequest(ctx context.Context, req Request) (*Request, bool)
}

// New builds the façade matching the manifest kind over a loaded context
func New(m manifest.Manifest, sc *sandbox.Context, b *bridge.Bridge) (Source, error) {
	core := base{manifest: m, sc: sc, bridge: b}
	switch m.Kind {
	case manifest.KindText:
		return &textSource{core}, nil
	case manifest.KindImage:
		return &imageSource{core}, nil
	case manifest.KindVideo:
		return &videoSource{core}, nil
	default:
		return nil, fmt.Errorf("%w: %s is %s", ErrNotSource, m.ID, m.Kind)
	}
}

// Equal reports whether a and b are the same kind of source with the same id
func Equal(a, b Source) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Kind() == b.Kind() && a.ID() == b.ID()
}

type base struct {
	manifest manifest.Manifest
	sc       *sandbox.Context
	bridge   *bridge.Bridge
}

func (b *base) sealed() {}

func (b *base) Manifest() manifest.Manifest { return b.manifest }
func (b *base) ID() string                  { return b.manifest.ID }
func (b *base) Kind() manifest.Kind         { return b.manifest.Kind }
func (b *base) Context() *sandbox.Context   { return b.sc }

// Close stops the underlying script context
func (b *base) Close() error {
	return b.sc.Close()
}

func (b *base) GetListings(ctx context.Context) ([]SourceListing, bool) {
	return bridge.Optional[[]SourceListing](ctx, b.bridge, b.sc, "getListings")
}

func (b *base) GetListing(ctx context.Context, listingID string, page int) (*Listing, bool) {
	return present(bridge.Optional[*Listing](ctx, b.bridge, b.sc, "getListing", listingID, page))
}

func (b *base) GetSearchResults(ctx context.Context, query string, page int, filters []Filter) (*EntryResult, bool) {
	if filters == nil {
		filters = []Filter{}
	}
	return present(bridge.Optional[*EntryResult](ctx, b.bridge, b.sc, "getSearchResults", query, page, filters))
}

func (b *base) GetEntry(ctx context.Context, id string) (*Entry, bool) {
	return present(bridge.Optional[*Entry](ctx, b.bridge, b.sc, "getEntry", id))
}

func (b *base) GetFilters(ctx context.Context) ([]Filter, bool) {
	return bridge.Optional[[]Filter](ctx, b.bridge, b.sc, "getFilters")
}

func (b *base) GetSettings(ctx context.Context) ([]SettingGroup, bool) {
	return bridge.Optional[[]SettingGroup](ctx, b.bridge, b.sc, "getSettings")
}

type textSource struct{ base }

func (s *textSource) GetChapters(ctx context.Context, id string, page int) ([]Chapter, bool) {
	return bridge.Optional[[]Chapter](ctx, s.bridge, s.sc, "getChapters", id, page)
}

func (s *textSource) GetChapterDetails(ctx context.Context, id, entryID string) (*TextChapter, bool) {
	return present(bridge.Optional[*TextChapter](ctx, s.bridge, s.sc, "getChapterDetails", id, entryID))
}

type imageSource struct{ base }

func (s *imageSource) GetChapters(ctx context.Context, id string, page int) ([]Chapter, bool) {
	return bridge.Optional[[]Chapter](ctx, s.bridge, s.sc, "getChapters", id, page)
}

func (s *imageSource) GetChapterDetails(ctx context.Context, id, entryID string) ([]Page, bool) {
	return bridge.Optional[[]Page](ctx, s.bridge, s.sc, "getChapterDetails", id, entryID)
}

func (s *imageSource) ModifyImageRequest(ctx context.Context, req Request) (*Request, bool) {
	return present(bridge.Optional[*Request](ctx, s.bridge, s.sc, "modifyImageRequest", req))
}

type videoSource struct{ base }

func (s *videoSource) GetEpisodes(ctx context.Context, id string, page int) ([]Episode, bool) {
	return bridge.Optional[[]Episode](ctx, s.bridge, s.sc, "getEpisodes", id, page)
}

func (s *videoSource) GetEpisodeDetails(ctx context.Context, id, entryID string) (*EpisodeDetails, bool) {
	return present(bridge.Optional[*EpisodeDetails](ctx, s.bridge, s.sc, "getEpisodeDetails", id, entryID))
}

func (s *videoSource) ModifyVideoRequest(ctx context.Context, req Request) (*Request, bool) {
	return present(bridge.Optional[*Request](ctx, s.bridge, s.sc, "modifyVideoRequest", req))
}

// present treats a guest null as absence
func present[T any](v *T, ok bool) (*T, bool) {
	if v == nil {
		return nil, false
	}
	return v, ok
}
