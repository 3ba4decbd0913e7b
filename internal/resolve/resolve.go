// Package resolve turns library asset handles into URIs that can be shown
// directly. Resolution never fails from the caller's point of view: every
// error path falls back to the asset's original URI.
package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gallery-sweep/internal/medialib"
)

// DefaultIndirectSchemes are the handle schemes that need an ExtendedInfo
// lookup before they can be displayed.
var DefaultIndirectSchemes = []string{"ph", "s3"}

// InfoSource is the part of a media library the resolver depends on.
type InfoSource interface {
	ExtendedInfo(ctx context.Context, asset medialib.Asset) (medialib.ExtendedInfo, error)
}

// Resolver resolves asset URIs against a library.
type Resolver struct {
	source   InfoSource
	indirect map[string]bool
}

// New creates a Resolver. With no schemes, DefaultIndirectSchemes is used.
func New(source InfoSource, schemes ...string) *Resolver {
	if len(schemes) == 0 {
		schemes = DefaultIndirectSchemes
	}
	indirect := make(map[string]bool, len(schemes))
	for _, s := range schemes {
		indirect[strings.ToLower(s)] = true
	}
	return &Resolver{source: source, indirect: indirect}
}

// Resolve returns a directly displayable URI for asset, or asset.URI when
// none can be obtained.
func (r *Resolver) Resolve(ctx context.Context, asset medialib.Asset) string {
	uri := asset.URI
	if IsLocalURI(uri) || IsHTTPURI(uri) {
		return uri
	}
	if !r.NeedsLookup(uri) || r.source == nil {
		return uri
	}

	info, err := r.lookup(ctx, asset)
	if err != nil {
		log.Warn().Err(err).Str("asset_id", asset.ID).Msg("Error getting asset info, falling back to original URI")
		return uri
	}
	if info.LocalURI == "" {
		log.Warn().Str("asset_id", asset.ID).Msg("No local URI available for asset, using original URI")
		return uri
	}
	return info.LocalURI
}

// NeedsLookup reports whether uri uses one of the resolver's indirection
// schemes.
func (r *Resolver) NeedsLookup(uri string) bool {
	return r.indirect[scheme(uri)]
}

// lookup calls the info source and turns a panic into an error so a
// misbehaving backend cannot take the caller down.
func (r *Resolver) lookup(ctx context.Context, asset medialib.Asset) (info medialib.ExtendedInfo, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("extended info panicked: %v", p)
		}
	}()
	return r.source.ExtendedInfo(ctx, asset)
}

// IsPhotoLibraryURI reports whether uri uses the ph:// photo-library scheme.
func IsPhotoLibraryURI(uri string) bool {
	return strings.HasPrefix(uri, "ph://")
}

// IsLocalURI reports whether uri is a file:// URI or an absolute path.
func IsLocalURI(uri string) bool {
	return strings.HasPrefix(uri, "file://") || strings.HasPrefix(uri, "/")
}

// IsHTTPURI reports whether uri is an http:// or https:// URL.
func IsHTTPURI(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

func scheme(uri string) string {
	s, _, ok := strings.Cut(uri, "://")
	if !ok {
		return ""
	}
	return strings.ToLower(s)
}
