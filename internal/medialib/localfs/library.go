// Package localfs implements medialib.Library over a directory tree.
//
// Assets are handed out as ph://<id> handles, where id is the slash-separated
// path relative to the library root, so callers go through ExtendedInfo to
// get a displayable file:// URI. Deleted files are moved into a trash
// directory under the root instead of being unlinked.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gallery-sweep/internal/filehandler"
	"github.com/fpang/gallery-sweep/internal/medialib"
)

const (
	// Scheme is the indirection scheme used for asset handles.
	Scheme = "ph"

	// TrashDirName is the directory (under the root) that receives deleted files.
	TrashDirName = ".gallery-sweep-trash"

	lockFileName = ".gallery-sweep.lock"
)

// ErrOutsideRoot is returned when an asset id escapes the library root.
var ErrOutsideRoot = errors.New("asset path escapes library root")

// Options configures a Library.
type Options struct {
	// MaxDepth limits recursion. 0 = unlimited.
	MaxDepth int
	// Confirm is asked before any file is moved. nil means deletions are
	// always confirmed.
	Confirm medialib.ConfirmFunc
}

// Library is a directory-backed media library.
type Library struct {
	root    string
	opts    Options
	lock    *flock.Flock
	scan    func(string, filehandler.ScanOptions) ([]*filehandler.MediaFile, error)
	nowFunc func() time.Time
}

// Compile-time interface checks.
var (
	_ medialib.Library   = (*Library)(nil)
	_ medialib.Confirmer = (*Library)(nil)
	_ medialib.Trasher   = (*Library)(nil)
)

// New creates a Library rooted at dir. The directory must exist.
func New(dir string, opts Options) (*Library, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve library root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat library root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library root is not a directory: %s", abs)
	}
	return &Library{
		root:    abs,
		opts:    opts,
		lock:    flock.New(filepath.Join(abs, lockFileName)),
		scan:    filehandler.ScanDirectoryMediaWithOptions,
		nowFunc: time.Now,
	}, nil
}

// Root returns the absolute library root.
func (l *Library) Root() string {
	return l.root
}

// TrashDir returns the directory deleted files are moved to.
func (l *Library) TrashDir() string {
	return filepath.Join(l.root, TrashDirName)
}

// Recoverable is true: deleted files stay in TrashDir.
func (l *Library) Recoverable() bool {
	return true
}

// SetConfirm replaces the deletion confirmation hook.
func (l *Library) SetConfirm(fn medialib.ConfirmFunc) {
	l.opts.Confirm = fn
}

// ListAssets scans the root and returns one page, newest first.
// The directory is rescanned on each call so files added or removed
// between pages are picked up; the cursor keeps positions stable.
func (l *Library) ListAssets(ctx context.Context, opts medialib.ListOptions) (medialib.Page, error) {
	if err := ctx.Err(); err != nil {
		return medialib.Page{}, err
	}

	files, err := l.scan(l.root, filehandler.ScanOptions{
		MaxDepth: l.opts.MaxDepth,
		SkipDirs: []string{TrashDirName},
	})
	if err != nil {
		return medialib.Page{}, fmt.Errorf("scan library %s: %w", l.root, err)
	}

	assets := make([]medialib.Asset, 0, len(files))
	for _, f := range files {
		mt := medialib.MediaTypePhoto
		if f.IsVideoFile() {
			mt = medialib.MediaTypeVideo
		}
		if !opts.Includes(mt) {
			continue
		}
		id, err := l.idFor(f.Path)
		if err != nil {
			log.Warn().Err(err).Str("path", f.Path).Msg("Skipping file outside library root")
			continue
		}
		assets = append(assets, medialib.Asset{
			ID:        id,
			MediaType: mt,
			URI:       HandleFor(id),
			Filename:  filepath.Base(f.Path),
			CreatedAt: f.CapturedAt,
			Size:      f.Size,
		})
	}

	medialib.SortNewestFirst(assets)

	page, err := medialib.Paginate(assets, opts)
	if err != nil {
		return medialib.Page{}, err
	}

	log.Debug().
		Str("root", l.root).
		Int("total", len(assets)).
		Int("returned", len(page.Assets)).
		Bool("has_next_page", page.HasNextPage).
		Msg("Listed local assets")

	return page, nil
}

// ExtendedInfo maps a ph:// handle to a file:// URI. A file that no longer
// exists yields an empty LocalURI rather than an error.
func (l *Library) ExtendedInfo(ctx context.Context, asset medialib.Asset) (medialib.ExtendedInfo, error) {
	if err := ctx.Err(); err != nil {
		return medialib.ExtendedInfo{}, err
	}
	p, err := l.PathFor(asset.ID)
	if err != nil {
		return medialib.ExtendedInfo{}, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return medialib.ExtendedInfo{}, nil
		}
		return medialib.ExtendedInfo{}, fmt.Errorf("stat %s: %w", p, err)
	}
	return medialib.ExtendedInfo{LocalURI: FileURI(p)}, nil
}

// DeleteAssets moves every asset into the trash directory. The call is
// all-or-nothing as far as it can be: every source is checked before the
// first move, and moves already done are rolled back if a later one fails.
func (l *Library) DeleteAssets(ctx context.Context, assets []medialib.Asset) (bool, error) {
	if len(assets) == 0 {
		return true, nil
	}

	paths := make([]string, len(assets))
	for i, a := range assets {
		p, err := l.PathFor(a.ID)
		if err != nil {
			return false, err
		}
		if _, err := os.Stat(p); err != nil {
			log.Warn().Err(err).Str("asset_id", a.ID).Msg("Asset missing, refusing deletion")
			return false, nil
		}
		paths[i] = p
	}

	if l.opts.Confirm != nil {
		ok, err := l.opts.Confirm(ctx, assets)
		if err != nil {
			return false, fmt.Errorf("confirm deletion: %w", err)
		}
		if !ok {
			log.Info().Int("count", len(assets)).Msg("Deletion declined")
			return false, nil
		}
	}

	locked, err := l.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return false, fmt.Errorf("acquire library lock: %w", err)
	}
	if !locked {
		return false, errors.New("another gallery-sweep session holds the library lock")
	}
	defer func() {
		if err := l.lock.Unlock(); err != nil {
			log.Warn().Err(err).Msg("Failed to release library lock")
		}
	}()

	batch := l.nowFunc().UTC().Format("20060102-150405")
	var done []trashMove

	for i, src := range paths {
		dst := filepath.Join(l.TrashDir(), batch, filepath.FromSlash(assets[i].ID))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			l.rollback(done)
			return false, fmt.Errorf("create trash directory: %w", err)
		}
		if err := os.Rename(src, dst); err != nil {
			l.rollback(done)
			return false, fmt.Errorf("move %s to trash: %w", assets[i].ID, err)
		}
		done = append(done, trashMove{from: src, to: dst})
	}

	log.Info().
		Int("count", len(done)).
		Str("trash", filepath.Join(l.TrashDir(), batch)).
		Msg("Moved assets to trash")

	return true, nil
}

type trashMove struct{ from, to string }

func (l *Library) rollback(done []trashMove) {
	for i := len(done) - 1; i >= 0; i-- {
		if err := os.Rename(done[i].to, done[i].from); err != nil {
			log.Error().Err(err).Str("path", done[i].from).Msg("Failed to restore file from trash")
		}
	}
}

// PathFor returns the absolute file path for an asset id.
// Names that merely contain "..", such as "beach..sunset.jpg", are valid.
func (l *Library) PathFor(id string) (string, error) {
	clean := path.Clean("/" + id)
	if clean == "/" || escapes(id) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, id)
	}
	return filepath.Join(l.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func (l *Library) idFor(p string) (string, error) {
	rel, err := filepath.Rel(l.root, p)
	if err != nil {
		return "", err
	}
	if rel == "." || escapes(filepath.ToSlash(rel)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return filepath.ToSlash(rel), nil
}

// escapes reports whether id has a ".." segment. Backslashes count as
// separators too so an id cannot climb out on Windows.
func escapes(id string) bool {
	segments := strings.FieldsFunc(id, func(r rune) bool { return r == '/' || r == '\\' })
	for _, seg := range segments {
		if seg == ".." {
			return true
		}
	}
	return false
}

// HandleFor returns the ph:// handle for an asset id.
func HandleFor(id string) string {
	return Scheme + "://" + id
}

// FileURI returns a file:// URI for an absolute path.
func FileURI(p string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(p)}
	return u.String()
}
