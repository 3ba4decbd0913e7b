// Package triage holds the browsing and keep/discard state for a media
// library: the loaded asset sequence, the current position, the page cursor
// and each asset's mark.
//
// A Store is safe for concurrent use. Its mutex is never held while the
// library is being called, and only one page load may be in flight at a time.
package triage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gallery-sweep/internal/medialib"
	"github.com/fpang/gallery-sweep/internal/metrics"
	"github.com/fpang/gallery-sweep/internal/resolve"
)

var (
	// ErrLoadInFlight is returned when a page load is requested while another
	// one has not finished.
	ErrLoadInFlight = errors.New("a page load is already in progress")
	// ErrDeleteRefused is returned when the library declined the deletion.
	ErrDeleteRefused = errors.New("deletion was not confirmed")
	// ErrInvalidStatus is returned for a mark other than keep or discard.
	ErrInvalidStatus = errors.New("invalid status")
)

// DeleteResult reports the outcome of DeleteDiscarded.
type DeleteResult struct {
	Deleted         int
	NothingToDelete bool
}

// Snapshot is a read-only copy of the store state.
type Snapshot struct {
	Assets       []Asset
	CurrentIndex int
	IsLoading    bool
	HasNextPage  bool
	Kept         int
	Discarded    int
	Total        int
}

// Current returns the asset at CurrentIndex.
func (s Snapshot) Current() (Asset, bool) {
	if len(s.Assets) == 0 {
		return Asset{}, false
	}
	return s.Assets[s.CurrentIndex], true
}

// RecorderFunc creates a fresh metrics recorder for one operation.
type RecorderFunc func() *metrics.Recorder

// Option configures a Store.
type Option func(*Store)

// WithPageSize sets how many assets each page load requests.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithNotifier sets the receiver of user-facing notices.
func WithNotifier(n Notifier) Option {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithMediaTypes restricts the listing. The default is photos and videos.
func WithMediaTypes(types ...medialib.MediaType) Option {
	return func(s *Store) {
		if len(types) > 0 {
			s.mediaTypes = types
		}
	}
}

// WithMetrics enables per-operation EMF metrics.
func WithMetrics(newRecorder RecorderFunc) Option {
	return func(s *Store) {
		s.newRecorder = newRecorder
	}
}

// Store is the triage state machine.
type Store struct {
	lib         medialib.Library
	resolver    *resolve.Resolver
	notifier    Notifier
	newRecorder RecorderFunc
	pageSize    int
	mediaTypes  []medialib.MediaType

	mu           sync.Mutex
	assets       []Asset
	currentIndex int
	endCursor    string
	hasNextPage  bool
	loading      bool
}

// New creates an empty Store over lib. A nil resolver leaves every asset on
// its source handle.
func New(lib medialib.Library, res *resolve.Resolver, opts ...Option) *Store {
	s := &Store{
		lib:         lib,
		resolver:    res,
		notifier:    NopNotifier{},
		pageSize:    medialib.DefaultPageSize,
		mediaTypes:  []medialib.MediaType{medialib.MediaTypePhoto, medialib.MediaTypeVideo},
		hasNextPage: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadPage fetches one page. With appendPage it continues after the cursor
// and keeps the position; otherwise it restarts from the newest asset and
// replaces the sequence.
func (s *Store) LoadPage(ctx context.Context, appendPage bool) error {
	_, err := s.load(ctx, appendPage)
	return err
}

// Reset reloads the library from the beginning.
func (s *Store) Reset(ctx context.Context) error {
	return s.LoadPage(ctx, false)
}

// load returns the id of the first asset that was new to the sequence, or
// "" when nothing was added.
func (s *Store) load(ctx context.Context, appendPage bool) (string, error) {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return "", ErrLoadInFlight
	}
	if appendPage && !s.hasNextPage {
		s.mu.Unlock()
		return "", nil
	}
	after := ""
	if appendPage {
		after = s.endCursor
	}
	s.loading = true
	s.mu.Unlock()

	start := time.Now()
	rec := s.recorder("LoadPage")

	page, err := s.lib.ListAssets(ctx, medialib.ListOptions{
		MediaTypes: s.mediaTypes,
		SortBy:     medialib.SortCreationTimeDesc,
		First:      s.pageSize,
		After:      after,
	})

	var fetched []Asset
	if err == nil {
		fetched = make([]Asset, 0, len(page.Assets))
		for _, raw := range page.Assets {
			fetched = append(fetched, s.toAsset(ctx, raw))
		}
	}

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.mu.Unlock()
		if rec != nil {
			rec.Count("PageLoadErrors").Flush()
		}
		log.Error().Err(err).Bool("append", appendPage).Msg("Failed to load gallery page")
		s.notifier.Notify(Notice{Level: LevelError, Title: titleError, Message: msgLoadFailed})
		return "", fmt.Errorf("load page: %w", err)
	}

	firstNew := ""
	if appendPage {
		seen := make(map[string]bool, len(s.assets))
		for _, a := range s.assets {
			seen[a.ID] = true
		}
		for _, a := range fetched {
			if seen[a.ID] {
				log.Debug().Str("asset_id", a.ID).Msg("Skipping asset already loaded")
				continue
			}
			seen[a.ID] = true
			if firstNew == "" {
				firstNew = a.ID
			}
			s.assets = append(s.assets, a)
		}
	} else {
		s.assets = dedupe(fetched)
		s.currentIndex = 0
		if len(s.assets) > 0 {
			firstNew = s.assets[0].ID
		}
	}
	s.endCursor = page.EndCursor
	s.hasNextPage = page.HasNextPage
	total := len(s.assets)
	s.mu.Unlock()

	if rec != nil {
		rec.Since("PageLoadMs", start).
			Metric("PageAssets", float64(len(fetched)), metrics.UnitCount).
			Flush()
	}
	log.Debug().
		Bool("append", appendPage).
		Int("fetched", len(fetched)).
		Int("total", total).
		Bool("has_next_page", page.HasNextPage).
		Msg("Loaded gallery page")
	return firstNew, nil
}

func (s *Store) toAsset(ctx context.Context, raw medialib.Asset) Asset {
	a := Asset{
		ID:        raw.ID,
		Kind:      kindOf(raw.MediaType),
		SourceURI: raw.URI,
		Status:    StatusUnmarked,
		Filename:  raw.Filename,
		CreatedAt: raw.CreatedAt,
		Size:      raw.Size,
	}
	if s.resolver == nil {
		return a
	}
	resolved := s.resolver.Resolve(ctx, raw)
	if resolved == raw.URI && s.resolver.NeedsLookup(raw.URI) {
		return a
	}
	a.ResolvedURI = resolved
	return a
}

func dedupe(assets []Asset) []Asset {
	seen := make(map[string]bool, len(assets))
	out := assets[:0]
	for _, a := range assets {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	return out
}

// Mark sets the status of the asset with id. Unknown ids are ignored.
func (s *Store) Mark(id string, status Status) error {
	if status != StatusKeep && status != StatusDiscard {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.assets {
		if s.assets[i].ID == id {
			s.assets[i].Status = status
			return nil
		}
	}
	return nil
}

// MarkCurrent marks the asset at the current position and returns its id.
func (s *Store) MarkCurrent(status Status) (string, error) {
	cur, ok := s.Current()
	if !ok {
		if status != StatusKeep && status != StatusDiscard {
			return "", fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
		return "", nil
	}
	return cur.ID, s.Mark(cur.ID, status)
}

// Advance moves to the next asset. At the last asset it loads the next page,
// if there is one, and moves to the first asset of that page.
func (s *Store) Advance(ctx context.Context) error {
	s.mu.Lock()
	if s.currentIndex < len(s.assets)-1 {
		s.currentIndex++
		s.mu.Unlock()
		return nil
	}
	if !s.hasNextPage || s.loading {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	firstNew, err := s.load(ctx, true)
	if err != nil {
		if errors.Is(err, ErrLoadInFlight) {
			return nil
		}
		return err
	}
	if firstNew == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.assets {
		if s.assets[i].ID == firstNew {
			s.currentIndex = i
			break
		}
	}
	return nil
}

// Retreat moves to the previous asset, if any.
func (s *Store) Retreat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentIndex > 0 {
		s.currentIndex--
	}
}

// Current returns the asset at the current position.
func (s *Store) Current() (Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.assets) == 0 {
		return Asset{}, false
	}
	return s.assets[s.currentIndex], true
}

// Get returns the loaded asset with id.
func (s *Store) Get(id string) (Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assets {
		if a.ID == id {
			return a, true
		}
	}
	return Asset{}, false
}

// DeleteDiscarded asks the library to delete every asset marked discard and,
// once the library confirms, removes them from the sequence.
func (s *Store) DeleteDiscarded(ctx context.Context) (DeleteResult, error) {
	s.mu.Lock()
	var batch []medialib.Asset
	for _, a := range s.assets {
		if a.Status == StatusDiscard {
			batch = append(batch, a.raw())
		}
	}
	s.mu.Unlock()

	if len(batch) == 0 {
		s.notifier.Notify(Notice{Level: LevelInfo, Title: titleNothingMarked, Message: msgNothingMarked})
		return DeleteResult{NothingToDelete: true}, nil
	}

	rec := s.recorder("DeleteDiscarded")
	ok, err := s.lib.DeleteAssets(ctx, batch)
	if err != nil {
		if rec != nil {
			rec.Count("DeleteRefused").Flush()
		}
		log.Error().Err(err).Int("count", len(batch)).Msg("Failed to delete discarded assets")
		s.notifier.Notify(Notice{Level: LevelError, Title: titleError, Message: msgDeleteFailed})
		return DeleteResult{}, fmt.Errorf("delete %d assets: %w", len(batch), err)
	}
	if !ok {
		if rec != nil {
			rec.Count("DeleteRefused").Flush()
		}
		log.Warn().Int("count", len(batch)).Msg("Deletion declined")
		s.notifier.Notify(Notice{Level: LevelError, Title: titleError, Message: msgDeleteRefused})
		return DeleteResult{}, ErrDeleteRefused
	}

	gone := make(map[string]bool, len(batch))
	for _, a := range batch {
		gone[a.ID] = true
	}

	s.mu.Lock()
	kept := s.assets[:0]
	for _, a := range s.assets {
		if !gone[a.ID] {
			kept = append(kept, a)
		}
	}
	// Clear the tail so removed assets are not retained by the backing array.
	for i := len(kept); i < len(s.assets); i++ {
		s.assets[i] = Asset{}
	}
	s.assets = kept
	switch {
	case len(s.assets) == 0:
		s.currentIndex = 0
	case s.currentIndex >= len(s.assets):
		s.currentIndex = len(s.assets) - 1
	}
	s.mu.Unlock()

	if rec != nil {
		rec.Metric("AssetsDeleted", float64(len(batch)), metrics.UnitCount).Flush()
	}
	recoverable := medialib.Recoverable(s.lib)
	log.Info().Int("count", len(batch)).Bool("recoverable", recoverable).Msg("Deleted discarded assets")
	template := msgPurgedTemplate
	if recoverable {
		template = msgDeletedTemplate
	}
	s.notifier.Notify(Notice{
		Level:   LevelSuccess,
		Title:   titleDeleted,
		Message: fmt.Sprintf(template, len(batch)),
	})
	return DeleteResult{Deleted: len(batch)}, nil
}

// KeptCount returns how many loaded assets are marked keep.
func (s *Store) KeptCount() int {
	return s.count(StatusKeep)
}

// DiscardedCount returns how many loaded assets are marked discard.
func (s *Store) DiscardedCount() int {
	return s.count(StatusDiscard)
}

func (s *Store) count(status Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.assets {
		if a.Status == status {
			n++
		}
	}
	return n
}

// IsLoading reports whether a page load is in flight.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// HasNextPage reports whether the library may have more assets.
func (s *Store) HasNextPage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasNextPage
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Assets:       make([]Asset, len(s.assets)),
		CurrentIndex: s.currentIndex,
		IsLoading:    s.loading,
		HasNextPage:  s.hasNextPage,
		Total:        len(s.assets),
	}
	copy(snap.Assets, s.assets)
	for _, a := range s.assets {
		switch a.Status {
		case StatusKeep:
			snap.Kept++
		case StatusDiscard:
			snap.Discarded++
		}
	}
	return snap
}

func (s *Store) recorder(operation string) *metrics.Recorder {
	if s.newRecorder == nil {
		return nil
	}
	return s.newRecorder().Dimension("Operation", operation)
}
