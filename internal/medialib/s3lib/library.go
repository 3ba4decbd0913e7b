// Package s3lib implements medialib.Library over an S3 bucket prefix.
//
// Objects with a supported photo or video extension are listed newest first
// by LastModified. Handles use the s3://bucket/key form and are resolved to
// presigned GET URLs through ExtendedInfo.
package s3lib

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gallery-sweep/internal/filehandler"
	"github.com/fpang/gallery-sweep/internal/medialib"
)

// Scheme is the handle scheme for S3 assets.
const Scheme = "s3"

// DefaultPresignExpiry is how long resolved URLs stay valid.
const DefaultPresignExpiry = time.Hour

// maxDeleteBatch is the S3 DeleteObjects limit per call.
const maxDeleteBatch = 1000

// Client is the subset of *s3.Client the library needs.
type Client interface {
	s3.ListObjectsV2APIClient
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Presigner is the subset of *s3.PresignClient the library needs.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Options configures a Library.
type Options struct {
	Bucket string
	// Prefix limits the listing, e.g. "camera-roll/". Empty lists the bucket.
	Prefix        string
	PresignExpiry time.Duration
	// Confirm is asked before any object is deleted. nil means deletions
	// are always confirmed.
	Confirm medialib.ConfirmFunc
}

// Library is an S3-backed media library.
type Library struct {
	client    Client
	presigner Presigner
	opts      Options
}

// Compile-time interface checks.
var (
	_ medialib.Library   = (*Library)(nil)
	_ medialib.Confirmer = (*Library)(nil)
	_ medialib.Trasher   = (*Library)(nil)
)

// New creates a Library. Bucket is required.
func New(client Client, presigner Presigner, opts Options) (*Library, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 library requires a bucket")
	}
	if opts.PresignExpiry <= 0 {
		opts.PresignExpiry = DefaultPresignExpiry
	}
	return &Library{client: client, presigner: presigner, opts: opts}, nil
}

// Recoverable is false: DeleteObjects removes objects for good.
func (l *Library) Recoverable() bool {
	return false
}

// SetConfirm replaces the deletion confirmation hook.
func (l *Library) SetConfirm(fn medialib.ConfirmFunc) {
	l.opts.Confirm = fn
}

// Bucket returns the configured bucket name.
func (l *Library) Bucket() string {
	return l.opts.Bucket
}

// ListAssets lists the whole prefix, sorts it newest first and returns one
// page. S3 only lists in key order, so the sort has to see every object.
func (l *Library) ListAssets(ctx context.Context, opts medialib.ListOptions) (medialib.Page, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(l.opts.Bucket)}
	if l.opts.Prefix != "" {
		input.Prefix = aws.String(l.opts.Prefix)
	}

	var assets []medialib.Asset
	paginator := s3.NewListObjectsV2Paginator(l.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return medialib.Page{}, fmt.Errorf("ListObjectsV2 bucket=%s prefix=%s: %w", l.opts.Bucket, l.opts.Prefix, err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			ext := strings.ToLower(path.Ext(key))
			if !filehandler.IsSupported(ext) {
				continue
			}
			mt := medialib.MediaTypePhoto
			if filehandler.IsVideo(ext) {
				mt = medialib.MediaTypeVideo
			}
			if !opts.Includes(mt) {
				continue
			}
			assets = append(assets, medialib.Asset{
				ID:        key,
				MediaType: mt,
				URI:       l.handleFor(key),
				Filename:  path.Base(key),
				CreatedAt: aws.ToTime(obj.LastModified),
				Size:      aws.ToInt64(obj.Size),
			})
		}
	}

	medialib.SortNewestFirst(assets)

	page, err := medialib.Paginate(assets, opts)
	if err != nil {
		return medialib.Page{}, err
	}

	log.Debug().
		Str("bucket", l.opts.Bucket).
		Str("prefix", l.opts.Prefix).
		Int("total", len(assets)).
		Int("returned", len(page.Assets)).
		Bool("has_next_page", page.HasNextPage).
		Msg("Listed S3 assets")

	return page, nil
}

// ExtendedInfo presigns a GET URL for the asset.
func (l *Library) ExtendedInfo(ctx context.Context, asset medialib.Asset) (medialib.ExtendedInfo, error) {
	result, err := l.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(l.opts.Bucket),
		Key:    aws.String(asset.ID),
	}, func(po *s3.PresignOptions) {
		po.Expires = l.opts.PresignExpiry
	})
	if err != nil {
		return medialib.ExtendedInfo{}, fmt.Errorf("presign GetObject key=%s: %w", asset.ID, err)
	}
	return medialib.ExtendedInfo{LocalURI: result.URL}, nil
}

// DeleteAssets removes the objects in batches. Any per-key failure makes the
// whole call report false; keys already removed stay removed because S3 has
// no way to undo a delete.
func (l *Library) DeleteAssets(ctx context.Context, assets []medialib.Asset) (bool, error) {
	if l.opts.Confirm != nil {
		ok, err := l.opts.Confirm(ctx, assets)
		if err != nil {
			return false, fmt.Errorf("confirm deletion: %w", err)
		}
		if !ok {
			log.Info().Int("count", len(assets)).Msg("S3 deletion declined")
			return false, nil
		}
	}

	failed := 0
	for i := 0; i < len(assets); i += maxDeleteBatch {
		end := i + maxDeleteBatch
		if end > len(assets) {
			end = len(assets)
		}

		objects := make([]s3types.ObjectIdentifier, 0, end-i)
		for _, a := range assets[i:end] {
			objects = append(objects, s3types.ObjectIdentifier{Key: aws.String(a.ID)})
		}

		out, err := l.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(l.opts.Bucket),
			Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return false, fmt.Errorf("DeleteObjects bucket=%s (%d keys): %w", l.opts.Bucket, len(objects), err)
		}
		for _, e := range out.Errors {
			failed++
			log.Error().
				Str("key", aws.ToString(e.Key)).
				Str("code", aws.ToString(e.Code)).
				Str("message", aws.ToString(e.Message)).
				Msg("Failed to delete S3 object")
		}
	}

	if failed > 0 {
		log.Warn().Int("failed", failed).Int("requested", len(assets)).Msg("S3 deletion incomplete")
		return false, nil
	}

	log.Info().Str("bucket", l.opts.Bucket).Int("count", len(assets)).Msg("Deleted S3 objects")
	return true, nil
}

func (l *Library) handleFor(key string) string {
	return Scheme + "://" + l.opts.Bucket + "/" + key
}
