package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// ErrNotFound is returned when an artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// S3Config configures access to S3-compatible object storage.
type S3Config struct {
	Region string
	// Endpoint overrides the service endpoint, e.g. for MinIO.
	Endpoint string
	// PathStyle addresses buckets in the URL path instead of the host.
	PathStyle bool
}

// Store opens and creates artifacts by location. The S3 client is created
// on first use so that filesystem-only deployments never load AWS config.
type Store struct {
	cfg    S3Config
	logger *zap.Logger

	once      sync.Once
	client    *s3.Client
	clientErr error
}

// NewStore creates a Store.
func NewStore(cfg S3Config, logger *zap.Logger) *Store {
	return &Store{cfg: cfg, logger: logger}
}

func (s *Store) s3Client(ctx context.Context) (*s3.Client, error) {
	s.once.Do(func() {
		var opts []func(*awsconfig.LoadOptions) error
		if s.cfg.Region != "" {
			opts = append(opts, awsconfig.WithRegion(s.cfg.Region))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			s.clientErr = fmt.Errorf("loading aws config: %w", err)
			return
		}

		s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if s.cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(s.cfg.Endpoint)
			}
			o.UsePathStyle = s.cfg.PathStyle
		})
	})
	return s.client, s.clientErr
}

// Open returns a reader over the decoded content of the artifact at uri.
func (s *Store) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	loc, err := Parse(uri)
	if err != nil {
		return nil, err
	}

	raw, err := s.openRaw(ctx, loc)
	if err != nil {
		return nil, err
	}

	r, err := Decompress(raw)
	if err != nil {
		raw.Close()
		return nil, err
	}

	return &stackedReadCloser{Reader: r, closers: []io.Closer{r, raw}}, nil
}

func (s *Store) openRaw(ctx context.Context, loc Location) (io.ReadCloser, error) {
	switch loc.Scheme {
	case SchemeS3:
		client, err := s.s3Client(ctx)
		if err != nil {
			return nil, err
		}

		s.logger.Debug("fetching artifact",
			zap.String("bucket", loc.Bucket),
			zap.String("key", loc.Key),
		)

		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(loc.Bucket),
			Key:    aws.String(loc.Key),
		})
		if err != nil {
			var nsk *types.NoSuchKey
			if errors.As(err, &nsk) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
			}
			return nil, fmt.Errorf("getting %s: %w", loc, err)
		}
		return out.Body, nil

	default:
		f, err := os.Open(loc.Path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
			}
			return nil, fmt.Errorf("opening %s: %w", loc, err)
		}
		return f, nil
	}
}

// Create returns a writer for a new artifact at uri, zstd-compressed when
// compress is set. The artifact is complete only after Close returns nil.
func (s *Store) Create(ctx context.Context, uri string, compress bool) (io.WriteCloser, error) {
	loc, err := Parse(uri)
	if err != nil {
		return nil, err
	}

	var sink io.WriteCloser
	switch loc.Scheme {
	case SchemeS3:
		sink, err = s.upload(ctx, loc)
	default:
		sink, err = createFile(loc.Path)
	}
	if err != nil {
		return nil, err
	}

	if !compress {
		return sink, nil
	}

	enc, err := Compress(sink)
	if err != nil {
		sink.Close()
		return nil, err
	}
	return &stackedWriteCloser{Writer: enc, closers: []io.Closer{enc, sink}}, nil
}

func createFile(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating artifact directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, nil
}

func (s *Store) upload(ctx context.Context, loc Location) (io.WriteCloser, error) {
	client, err := s.s3Client(ctx)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	u := &uploadWriter{pw: pw, done: make(chan error, 1)}
	uploader := manager.NewUploader(client)

	go func() {
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(loc.Bucket),
			Key:    aws.String(loc.Key),
			Body:   pr,
		})
		_ = pr.CloseWithError(err)
		u.done <- err
	}()

	s.logger.Debug("uploading artifact",
		zap.String("bucket", loc.Bucket),
		zap.String("key", loc.Key),
	)

	return u, nil
}

// Fetch returns a local filesystem path holding the decoded artifact. Plain
// local files are returned as is; everything else is copied into dir.
// cleanup removes any temporary copy.
func (s *Store) Fetch(ctx context.Context, uri, dir string) (path string, cleanup func(), err error) {
	loc, err := Parse(uri)
	if err != nil {
		return "", nil, err
	}

	if loc.Scheme == SchemeFile {
		compressed, err := isCompressed(loc.Path)
		if err != nil {
			return "", nil, err
		}
		if !compressed {
			return loc.Path, func() {}, nil
		}
	}

	r, err := s.Open(ctx, uri)
	if err != nil {
		return "", nil, err
	}
	defer r.Close()

	tmp, err := os.CreateTemp(dir, "sleeves-artifact-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating temporary artifact: %w", err)
	}
	cleanup = func() { _ = os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("copying %s: %w", loc, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("closing temporary artifact: %w", err)
	}

	return tmp.Name(), cleanup, nil
}

func isCompressed(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return false, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, len(zstdMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	return n == len(zstdMagic) && string(head) == string(zstdMagic), nil
}

type uploadWriter struct {
	pw   *io.PipeWriter
	done chan error
}

func (u *uploadWriter) Write(p []byte) (int, error) {
	return u.pw.Write(p)
}

func (u *uploadWriter) Close() error {
	if err := u.pw.Close(); err != nil {
		return err
	}
	if err := <-u.done; err != nil {
		return fmt.Errorf("uploading artifact: %w", err)
	}
	return nil
}

type stackedReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedReadCloser) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

type stackedWriteCloser struct {
	io.Writer
	closers []io.Closer
}

// Close closes layers outermost first so each flushes into the next.
func (s *stackedWriteCloser) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
