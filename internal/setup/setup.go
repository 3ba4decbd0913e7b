// Package setup turns a loaded configuration into the library backend,
// permission gate, preference store and triage store both binaries run on.
package setup

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gallery-sweep/internal/awsboot"
	"github.com/fpang/gallery-sweep/internal/config"
	"github.com/fpang/gallery-sweep/internal/medialib"
	"github.com/fpang/gallery-sweep/internal/medialib/localfs"
	"github.com/fpang/gallery-sweep/internal/medialib/s3lib"
	"github.com/fpang/gallery-sweep/internal/permission"
	"github.com/fpang/gallery-sweep/internal/prefs"
	"github.com/fpang/gallery-sweep/internal/resolve"
	"github.com/fpang/gallery-sweep/internal/triage"
)

// Backend names.
const (
	BackendLocal = "localfs"
	BackendS3    = "s3"
)

// Backend is the selected media library and the gate that guards it.
type Backend struct {
	Name      string
	Library   medialib.Library
	Gate      permission.Gate
	Directory string
	Bucket    string
	// Local is set for the directory backend.
	Local *localfs.Library
}

// SetConfirm installs a deletion hook on the library.
func (b *Backend) SetConfirm(fn medialib.ConfirmFunc) {
	if c, ok := b.Library.(medialib.Confirmer); ok {
		c.SetConfirm(fn)
	}
}

// Library builds the backend selected by cfg. AWS is only touched for the
// S3 backend.
func Library(ctx context.Context, cfg *config.Config, lazy *awsboot.Lazy, prompter permission.Prompter) (*Backend, error) {
	if cfg.UsesBucket() {
		awsCfg, err := lazy.Get(ctx)
		if err != nil {
			return nil, err
		}
		clients, err := awsboot.InitS3(awsCfg, cfg.Library.Bucket)
		if err != nil {
			return nil, err
		}
		lib, err := s3lib.New(clients.Client, clients.Presigner, s3lib.Options{
			Bucket:        clients.Bucket,
			Prefix:        cfg.Library.Prefix,
			PresignExpiry: cfg.PresignExpiry(),
		})
		if err != nil {
			return nil, err
		}
		log.Debug().Str("bucket", clients.Bucket).Str("prefix", cfg.Library.Prefix).Msg("Using S3 library")
		return &Backend{
			Name:    BackendS3,
			Library: lib,
			Gate:    permission.NewBucketGate(clients.Client, clients.Bucket, prompter),
			Bucket:  clients.Bucket,
		}, nil
	}

	lib, err := localfs.New(cfg.Library.Directory, localfs.Options{MaxDepth: cfg.Library.MaxDepth})
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	log.Debug().Str("directory", lib.Root()).Int("max_depth", cfg.Library.MaxDepth).Msg("Using directory library")
	return &Backend{
		Name:      BackendLocal,
		Library:   lib,
		Gate:      permission.NewDirectoryGate(lib.Root(), prompter),
		Directory: lib.Root(),
		Local:     lib,
	}, nil
}

// Prefs builds the preference store selected by cfg.
func Prefs(ctx context.Context, cfg *config.Config, lazy *awsboot.Lazy) (prefs.Store, error) {
	switch cfg.Prefs.Backend {
	case config.PrefsBackendDynamoDB:
		awsCfg, err := lazy.Get(ctx)
		if err != nil {
			return nil, err
		}
		client, err := awsboot.InitDynamo(awsCfg, cfg.Prefs.Table)
		if err != nil {
			return nil, err
		}
		return prefs.NewDynamoStore(client, cfg.Prefs.Table, cfg.Prefs.Profile), nil
	default:
		return prefs.NewFileStore(cfg.Prefs.Path), nil
	}
}

// Store creates the triage store for backend.
func Store(b *Backend, cfg *config.Config, opts ...triage.Option) *triage.Store {
	all := append([]triage.Option{triage.WithPageSize(cfg.Library.PageSize)}, opts...)
	return triage.New(b.Library, resolve.New(b.Library), all...)
}
