package triage

import (
	"fmt"
	"time"

	"github.com/fpang/gallery-sweep/internal/medialib"
)

// Kind is the media kind of a triaged asset.
type Kind string

const (
	KindPhoto Kind = "photo"
	KindVideo Kind = "video"
)

// Status is the user's decision for an asset.
type Status string

const (
	StatusUnmarked Status = "unmarked"
	StatusKeep     Status = "keep"
	StatusDiscard  Status = "discard"
)

// ParseStatus accepts the two statuses a user can set.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusKeep, StatusDiscard:
		return Status(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Asset is a library item as held by the store.
type Asset struct {
	ID   string
	Kind Kind
	// SourceURI is the handle the library listed. It never changes.
	SourceURI string
	// ResolvedURI is empty when the handle could not be resolved.
	ResolvedURI string
	Status      Status
	Filename    string
	CreatedAt   time.Time
	Size        int64
}

// DisplayURI returns the resolved URI, or the source handle as a fallback.
func (a Asset) DisplayURI() string {
	if a.ResolvedURI != "" {
		return a.ResolvedURI
	}
	return a.SourceURI
}

func kindOf(mt medialib.MediaType) Kind {
	if mt == medialib.MediaTypeVideo {
		return KindVideo
	}
	return KindPhoto
}

func mediaTypeOf(k Kind) medialib.MediaType {
	if k == KindVideo {
		return medialib.MediaTypeVideo
	}
	return medialib.MediaTypePhoto
}

// raw converts back to the library representation for deletion.
func (a Asset) raw() medialib.Asset {
	return medialib.Asset{
		ID:        a.ID,
		MediaType: mediaTypeOf(a.Kind),
		URI:       a.SourceURI,
		Filename:  a.Filename,
		CreatedAt: a.CreatedAt,
		Size:      a.Size,
	}
}
