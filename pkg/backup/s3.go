package backup

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"quill/pkg/config"
	"quill/pkg/errors"
)

// newS3Client builds a client from the sync settings. Static credentials and
// a custom endpoint are optional so that MinIO and other S3-compatible stores
// work alongside AWS itself.
func newS3Client(ctx context.Context, s3cfg config.S3SyncConfig) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if s3cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(s3cfg.Region))
	}
	if s3cfg.AccessKey != "" && s3cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3cfg.AccessKey, s3cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeSync, "SYNC_FAILED", "failed to load S3 configuration")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return client, nil
}

// syncS3 uploads the archive to the configured bucket. The object key is the
// configured prefix joined with the archive file name.
func syncS3(ctx context.Context, cfg *config.Config, archive string, allowOverwrite, dryRun bool) (Result, error) {
	s3cfg := cfg.Sync.S3
	if !s3cfg.Enabled {
		return Result{}, errors.ErrSyncConfiguration.WithContext("reason", "s3 backend is disabled")
	}
	if s3cfg.Bucket == "" {
		return Result{}, errors.ErrSyncConfiguration.WithContext("reason", "s3 bucket is not configured")
	}

	key := path.Join(s3cfg.Prefix, filepath.Base(archive))
	result := Result{
		Archive:      archive,
		Backend:      BackendS3,
		RemoteTarget: "s3://" + s3cfg.Bucket + "/" + key,
		DryRun:       dryRun,
	}
	if dryRun {
		return result, nil
	}

	client, err := newS3Client(ctx, s3cfg)
	if err != nil {
		return Result{}, err
	}

	if !allowOverwrite {
		// An error from HeadObject is treated as "object absent"; the
		// subsequent PutObject surfaces real connectivity problems.
		_, err := client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s3cfg.Bucket),
			Key:    aws.String(key),
		})
		if err == nil {
			return Result{}, errors.ErrSyncConflict.WithContext("destination", result.RemoteTarget)
		}
	}

	file, err := os.Open(archive)
	if err != nil {
		return Result{}, errors.Wrap(err, errors.ErrTypeSync, "SYNC_FAILED", "failed to open archive")
	}
	defer file.Close()

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s3cfg.Bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return Result{}, errors.Wrap(err, errors.ErrTypeSync, "SYNC_FAILED", "failed to upload archive").
			WithContext("destination", result.RemoteTarget)
	}
	return result, nil
}
