// Package lode persists build transcripts to a Lode dataset.
//
// Every build is written as a single snapshot holding its status events and
// one result record. Records are partitioned by day, build_id and
// record_kind, so a transcript can be located from the manifest alone.
package lode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "docker-api-builds"

// Partition keys, in layout order.
const (
	KeyDay        = "day"
	KeyBuildID    = "build_id"
	KeyRecordKind = "record_kind"
)

// DeriveDay computes the partition day from the build start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// NewDataset opens the transcript dataset over the given store factory.
// Reads and writes use the same layout and codec.
func NewDataset(id string, factory lode.StoreFactory) (lode.Dataset, error) {
	if id == "" {
		id = DefaultDataset
	}
	ds, err := lode.NewDataset(
		lode.DatasetID(id),
		factory,
		lode.WithHiveLayout(KeyDay, KeyBuildID, KeyRecordKind),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, WrapInitError(err, id)
	}
	return ds, nil
}

// NewFSDataset opens the transcript dataset rooted at a local directory.
func NewFSDataset(id, root string) (lode.Dataset, error) {
	if root == "" {
		return nil, errors.New("transcript path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, WrapInitError(err, root)
	}
	return NewDataset(id, lode.NewFSFactory(root))
}

// S3Config holds configuration for the S3 storage backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket.
	Prefix string
	// Region is the AWS region. Empty uses the default chain.
	Region string
	// Endpoint is a custom endpoint for S3-compatible providers (MinIO, R2).
	Endpoint string
	// UsePathStyle forces path-style addressing.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(strings.TrimPrefix(path, "s3://"), "/")
	return bucket, prefix
}

// NewS3Dataset opens the transcript dataset in an S3 bucket.
// Credentials come from the AWS SDK default chain (env, shared config, IAM role).
func NewS3Dataset(ctx context.Context, id string, cfg S3Config) (lode.Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	factory := func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{
			Bucket: cfg.Bucket,
			Prefix: cfg.Prefix,
		})
	}
	return NewDataset(id, factory)
}

// snapshotMatches reports whether any manifest file of snap lies in the
// key=value partition. An empty value matches everything.
func snapshotMatches(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if hasPartition(f.Path, key, value) {
			return true
		}
	}
	return false
}

// partitionValues collects the values of key across the manifest of snap.
func partitionValues(snap *lode.DatasetSnapshot, key string) map[string]struct{} {
	values := make(map[string]struct{})
	prefix := key + "="
	for _, f := range snap.Manifest.Files {
		for part := range strings.SplitSeq(f.Path, "/") {
			if v, ok := strings.CutPrefix(part, prefix); ok {
				values[v] = struct{}{}
			}
		}
	}
	return values
}

// hasPartition matches whole path segments so build_id=b-1 never matches
// build_id=b-10.
func hasPartition(path, key, value string) bool {
	segment := key + "=" + value
	for part := range strings.SplitSeq(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}
