package medialib

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func makeAssets(n int) []Asset {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Asset, n)
	for i := range out {
		out[i] = Asset{
			ID:        fmt.Sprintf("a%02d", i),
			MediaType: MediaTypePhoto,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestSortNewestFirst(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assets := []Asset{
		{ID: "old", CreatedAt: ts},
		{ID: "b", CreatedAt: ts.Add(time.Hour)},
		{ID: "a", CreatedAt: ts.Add(time.Hour)},
		{ID: "new", CreatedAt: ts.Add(2 * time.Hour)},
	}
	SortNewestFirst(assets)

	want := []string{"new", "a", "b", "old"}
	for i, id := range want {
		if assets[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, assets[i].ID, id)
		}
	}
}

func TestPaginateWalksAllPages(t *testing.T) {
	assets := makeAssets(45)
	SortNewestFirst(assets)

	var seen []string
	opts := ListOptions{First: 20}
	pages := 0
	for {
		page, err := Paginate(assets, opts)
		if err != nil {
			t.Fatalf("Paginate: %v", err)
		}
		pages++
		for _, a := range page.Assets {
			seen = append(seen, a.ID)
		}
		if !page.HasNextPage {
			break
		}
		opts.After = page.EndCursor
	}

	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	if len(seen) != 45 {
		t.Fatalf("saw %d assets, want 45", len(seen))
	}
	if seen[0] != "a44" || seen[44] != "a00" {
		t.Errorf("order wrong: first=%s last=%s", seen[0], seen[44])
	}
}

func TestPaginateResumesAfterDeletedCursorAsset(t *testing.T) {
	assets := makeAssets(10)
	SortNewestFirst(assets)

	first, err := Paginate(assets, ListOptions{First: 3})
	if err != nil {
		t.Fatal(err)
	}
	// Drop the asset the cursor points at (a07) and continue.
	remaining := append(append([]Asset(nil), assets[:2]...), assets[3:]...)

	next, err := Paginate(remaining, ListOptions{First: 3, After: first.EndCursor})
	if err != nil {
		t.Fatal(err)
	}
	if len(next.Assets) != 3 || next.Assets[0].ID != "a06" {
		t.Errorf("resumed at %+v, want a06 first", next.Assets)
	}
}

func TestPaginateEmptyAndExhausted(t *testing.T) {
	page, err := Paginate(nil, ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Assets) != 0 || page.HasNextPage || page.EndCursor != "" {
		t.Errorf("empty page = %+v", page)
	}

	assets := makeAssets(2)
	SortNewestFirst(assets)
	last := Cursor{CreatedAt: assets[1].CreatedAt, ID: assets[1].ID}.Encode()
	page, err = Paginate(assets, ListOptions{After: last})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Assets) != 0 || page.HasNextPage {
		t.Errorf("exhausted page = %+v", page)
	}
	if page.EndCursor != last {
		t.Error("exhausted page should keep the caller's cursor")
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, in := range []string{"%%%", "bm9waXBl", "YWJjfA"} {
		if _, err := DecodeCursor(in); !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("DecodeCursor(%q) error = %v, want ErrInvalidCursor", in, err)
		}
	}
	if _, err := Paginate(makeAssets(1), ListOptions{After: "%%%"}); !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("Paginate with bad cursor error = %v", err)
	}
}

func TestListOptionsDefaults(t *testing.T) {
	var o ListOptions
	if o.PageSize() != DefaultPageSize {
		t.Errorf("PageSize() = %d, want %d", o.PageSize(), DefaultPageSize)
	}
	if !o.Includes(MediaTypeVideo) {
		t.Error("empty MediaTypes should include videos")
	}
	o.MediaTypes = []MediaType{MediaTypePhoto}
	if o.Includes(MediaTypeVideo) {
		t.Error("photo-only options should exclude videos")
	}
}

type plainLibrary struct{}

func (plainLibrary) ListAssets(ctx context.Context, opts ListOptions) (Page, error) {
	return Page{}, nil
}

func (plainLibrary) ExtendedInfo(ctx context.Context, asset Asset) (ExtendedInfo, error) {
	return ExtendedInfo{}, nil
}

func (plainLibrary) DeleteAssets(ctx context.Context, assets []Asset) (bool, error) {
	return true, nil
}

type trashLibrary struct {
	plainLibrary
	keeps bool
}

func (l trashLibrary) Recoverable() bool { return l.keeps }

func TestRecoverable(t *testing.T) {
	tests := []struct {
		name string
		lib  Library
		want bool
	}{
		{"no trash support", plainLibrary{}, false},
		{"trash", trashLibrary{keeps: true}, true},
		{"declares permanent", trashLibrary{keeps: false}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Recoverable(tt.lib); got != tt.want {
				t.Errorf("Recoverable = %v, want %v", got, tt.want)
			}
		})
	}
}
