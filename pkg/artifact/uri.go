// Package artifact reads and writes persisted index and metadata artifacts
// on the local filesystem or in S3-compatible object storage.
package artifact

import (
	"fmt"
	"net/url"
	"strings"
)

// Scheme identifies where an artifact lives.
type Scheme string

const (
	SchemeFile Scheme = "file"
	SchemeS3   Scheme = "s3"
)

// Location is a parsed artifact address.
type Location struct {
	Scheme Scheme
	// Path is the filesystem path for SchemeFile.
	Path string
	// Bucket and Key address an object for SchemeS3.
	Bucket string
	Key    string
}

func (l Location) String() string {
	if l.Scheme == SchemeS3 {
		return "s3://" + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// Parse accepts a plain path, a file:// URL or an s3://bucket/key URI.
func Parse(uri string) (Location, error) {
	if uri == "" {
		return Location{}, fmt.Errorf("artifact location is required")
	}

	if !strings.Contains(uri, "://") {
		return Location{Scheme: SchemeFile, Path: uri}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("parsing artifact location %q: %w", uri, err)
	}

	switch Scheme(u.Scheme) {
	case SchemeFile:
		return Location{Scheme: SchemeFile, Path: u.Host + u.Path}, nil
	case SchemeS3:
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("s3 location %q must name a bucket and key", uri)
		}
		return Location{Scheme: SchemeS3, Bucket: u.Host, Key: key}, nil
	default:
		return Location{}, fmt.Errorf("unsupported artifact scheme %q", u.Scheme)
	}
}
