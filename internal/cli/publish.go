package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"github.com/hupe1980/phyalf"
	"github.com/hupe1980/phyalf/blobstore"
	"github.com/hupe1980/phyalf/blobstore/minio"
	"github.com/hupe1980/phyalf/blobstore/s3"
	"github.com/hupe1980/phyalf/codec"
	"github.com/hupe1980/phyalf/internal/config"
)

// RunPublish uploads the ALF dataset in args[0].
func RunPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	store, err := openStore(cmd.Context(), cfg.Publish)
	if err != nil {
		return err
	}
	mc, err := codec.Lookup(cfg.Publish.ManifestCodec)
	if err != nil {
		return err
	}

	m, err := phyalf.Publish(cmd.Context(), args[0], store,
		phyalf.WithCompression(cfg.Publish.Compression),
		phyalf.WithConcurrency(cfg.Publish.Concurrency),
		phyalf.WithRateLimit(cfg.Publish.Rate),
		phyalf.WithManifestCodec(mc),
		phyalf.WithPublishLogger(logger),
	)
	if err != nil {
		return err
	}

	return printPublished(cmd.Context(), cmd.OutOrStdout(), m, store)
}

func printPublished(ctx context.Context, out io.Writer, m *phyalf.Manifest, store blobstore.BlobStore) error {
	for _, e := range m.Entries {
		fmt.Fprintf(out, "%-40s %10d %10d %08x\n", e.Name, e.Size, e.StoredSize, e.CRC32C)
	}
	fmt.Fprintf(out, "published %d files, %d bytes\n", len(m.Entries), m.TotalSize())

	if v, ok := store.(versioned); ok {
		n, err := v.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "commit version %d\n", n)
	}
	return nil
}

// versioned is implemented by stores that number their CURRENT commits.
type versioned interface {
	Version(ctx context.Context) (uint64, error)
}

// RunFetch downloads the current published dataset into args[0].
func RunFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(cmd.Context(), cfg.Publish)
	if err != nil {
		return err
	}
	m, err := phyalf.Download(cmd.Context(), store, args[0], nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "fetched %d files, %d bytes\n", len(m.Entries), m.TotalSize())
	return nil
}

func openStore(ctx context.Context, cfg config.PublishConfig) (blobstore.BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("--bucket is required")
	}
	switch cfg.Backend {
	case "local":
		return blobstore.NewLocalStore(filepath.Join(cfg.Bucket, filepath.FromSlash(cfg.Prefix))), nil
	case "minio":
		if cfg.Endpoint == "" {
			return nil, errors.New("--endpoint is required for the minio backend")
		}
		client, err := minio.Dial(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.Secure)
		if err != nil {
			return nil, err
		}
		return minio.NewStore(client, cfg.Bucket, cfg.Prefix), nil
	case "s3":
		awsCfg, err := s3.LoadAWSConfig(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		store := s3.NewStore(s3.NewClient(awsCfg, cfg.Endpoint), cfg.Bucket, cfg.Prefix)
		if cfg.CommitTable == "" {
			return store, nil
		}
		return s3.NewDDBCommitStore(store, dynamodb.NewFromConfig(awsCfg), cfg.CommitTable, ""), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
