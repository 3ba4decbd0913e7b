// Package medialib defines the contract between the triage store and a
// media library backend: list assets page by page, look up extended asset
// info, and delete assets in a batch.
//
// Backends live in subpackages: localfs (a directory on disk) and s3lib
// (an S3 bucket prefix).
package medialib

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MediaType classifies an asset.
type MediaType string

const (
	MediaTypePhoto MediaType = "photo"
	MediaTypeVideo MediaType = "video"
)

// SortBy selects the listing order. Only creation time, newest first, is
// supported by the bundled backends.
type SortBy string

const SortCreationTimeDesc SortBy = "creationTime"

// DefaultPageSize is the number of assets requested per page.
const DefaultPageSize = 20

// Asset is a raw library item as returned by ListAssets.
type Asset struct {
	ID        string
	MediaType MediaType
	// URI is the opaque source handle. It may need resolving before display.
	URI       string
	Filename  string
	CreatedAt time.Time
	Size      int64
}

// ListOptions controls a single ListAssets call.
type ListOptions struct {
	MediaTypes []MediaType
	SortBy     SortBy
	// First is the page size. Zero means DefaultPageSize.
	First int
	// After is the EndCursor of the previous page, empty for the first page.
	After string
}

// Page is one listing result.
type Page struct {
	Assets      []Asset
	EndCursor   string
	HasNextPage bool
}

// ExtendedInfo carries details that are too expensive to fetch while listing.
type ExtendedInfo struct {
	// LocalURI is a directly displayable URI (file:// or https://), empty if
	// the library cannot provide one.
	LocalURI string
}

// Library is a paginated, deletable media collection.
type Library interface {
	ListAssets(ctx context.Context, opts ListOptions) (Page, error)
	ExtendedInfo(ctx context.Context, asset Asset) (ExtendedInfo, error)
	// DeleteAssets returns true only if every asset was deleted. A false
	// result with a nil error means the deletion was declined.
	DeleteAssets(ctx context.Context, assets []Asset) (bool, error)
}

// ConfirmFunc is asked before a library deletes anything. Returning false
// declines the deletion.
type ConfirmFunc func(ctx context.Context, assets []Asset) (bool, error)

// Confirmer is implemented by libraries that accept a deletion hook.
type Confirmer interface {
	SetConfirm(fn ConfirmFunc)
}

// Trasher is implemented by libraries that can report whether deleted
// assets are recoverable.
type Trasher interface {
	Recoverable() bool
}

// Recoverable reports whether deletions through lib can be undone. A library
// that does not say is assumed to delete permanently.
func Recoverable(lib Library) bool {
	t, ok := lib.(Trasher)
	return ok && t.Recoverable()
}

// ErrInvalidCursor is returned when an After cursor cannot be decoded.
var ErrInvalidCursor = errors.New("invalid page cursor")

// Includes reports whether t is allowed by the option's media types.
// An empty list allows everything.
func (o ListOptions) Includes(t MediaType) bool {
	if len(o.MediaTypes) == 0 {
		return true
	}
	for _, mt := range o.MediaTypes {
		if mt == t {
			return true
		}
	}
	return false
}

// PageSize returns First, or DefaultPageSize when unset.
func (o ListOptions) PageSize() int {
	if o.First <= 0 {
		return DefaultPageSize
	}
	return o.First
}

// Cursor positions a listing after a given asset. Backends encode the
// creation time alongside the id so a listing can resume even if the asset
// itself has since been deleted.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Encode returns the opaque string form handed to callers.
func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a string produced by Cursor.Encode.
func DecodeCursor(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	nanos, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return Cursor{}, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return Cursor{CreatedAt: time.Unix(0, n), ID: id}, nil
}

// Precedes reports whether the cursor sorts strictly before an asset
// in newest-first order (older time, or same time and greater id).
func (c Cursor) Precedes(createdAt time.Time, id string) bool {
	if createdAt.Equal(c.CreatedAt) {
		return id > c.ID
	}
	return createdAt.Before(c.CreatedAt)
}

// SortNewestFirst orders assets by creation time descending, ties by id
// ascending, matching Cursor.Precedes.
func SortNewestFirst(assets []Asset) {
	sort.SliceStable(assets, func(i, j int) bool {
		a, b := assets[i], assets[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

// Paginate slices an already newest-first sorted list into one page.
func Paginate(sorted []Asset, opts ListOptions) (Page, error) {
	start := 0
	if opts.After != "" {
		cur, err := DecodeCursor(opts.After)
		if err != nil {
			return Page{}, err
		}
		start = len(sorted)
		for i, a := range sorted {
			if cur.Precedes(a.CreatedAt, a.ID) {
				start = i
				break
			}
		}
	}

	size := opts.PageSize()
	end := start + size
	if end > len(sorted) {
		end = len(sorted)
	}

	page := Page{
		Assets:      append([]Asset(nil), sorted[start:end]...),
		HasNextPage: end < len(sorted),
	}
	if end > start {
		last := sorted[end-1]
		page.EndCursor = Cursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	} else {
		page.EndCursor = opts.After
	}
	return page, nil
}
