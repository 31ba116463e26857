package main

import (
	"context"
	"fmt"

	"dagger/sleeves/internal/dagger"
)

// Release builds versioned binaries and syncs them to an S3 compatible bucket
// under the version prefix, and under "latest" when requested.
func (s *Sleeves) Release(
	ctx context.Context,

	// Version string (e.g., "v1.0.0")
	version string,

	// Git commit SHA
	commit string,

	// Bucket endpoint URL
	endpoint *dagger.Secret,

	// Bucket name
	bucket *dagger.Secret,

	// Bucket access key ID
	accessKeyId *dagger.Secret,

	// Bucket secret access key
	secretAccessKey *dagger.Secret,

	// Also publish under the "latest" prefix
	// +optional
	latest bool,
) (*dagger.Directory, error) {
	bucketName, err := bucket.Plaintext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket name: %w", err)
	}

	artifacts := s.BuildRelease(ctx, version, commit)

	aws := dag.Container().
		From("amazon/aws-cli:latest").
		WithSecretVariable("AWS_ENDPOINT_URL", endpoint).
		WithSecretVariable("AWS_ACCESS_KEY_ID", accessKeyId).
		WithSecretVariable("AWS_SECRET_ACCESS_KEY", secretAccessKey).
		WithEnvVariable("AWS_DEFAULT_REGION", "auto").
		WithDirectory("/artifacts", artifacts).
		WithWorkdir("/artifacts")

	prefixes := []string{version}
	if latest {
		prefixes = append(prefixes, "latest")
	}
	for _, prefix := range prefixes {
		dest := fmt.Sprintf("s3://%s/%s", bucketName, prefix)
		if _, err := aws.WithExec([]string{"aws", "s3", "sync", ".", dest}).Sync(ctx); err != nil {
			return artifacts, fmt.Errorf("could not upload %s release artifacts: %w", prefix, err)
		}
	}

	return artifacts, nil
}
