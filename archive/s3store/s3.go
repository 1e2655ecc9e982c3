// Package s3store archives records as JSON objects in an S3-compatible bucket.
//
// URI form: s3://[access_key:secret_key@]bucket[/prefix][?region=..&endpoint=..&anonymous=true]
// Records are stored at <prefix>/<datastore>/<collection>/<id>.json.
//
// Without keys in the URI the SDK default credential chain is used (environment,
// shared config, instance role). anonymous=true sends unsigned requests instead.
package s3store

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/newthinker/lasr-archive/archive"
	"github.com/newthinker/lasr-archive/archive/docjson"
	"go.uber.org/zap"
)

const defaultRegion = "us-east-1"

func init() {
	archive.Register(archive.KindS3, New)
}

// Config holds S3 connection configuration
type Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
	Anonymous bool
}

// ParseURI extracts the connection configuration from an s3:// URI.
func ParseURI(raw string) (Config, error) {
	if raw == "" {
		return Config{}, archive.Errorf(archive.ErrURIInvalid, "empty URI")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Config{}, archive.InvalidURI(raw, err)
	}
	if u.Scheme != "s3" {
		return Config{}, archive.Errorf(archive.ErrURIInvalid, "scheme must be s3, got %q", u.Scheme)
	}
	if u.Host == "" {
		return Config{}, archive.Errorf(archive.ErrURIInvalid, "missing bucket")
	}

	q := u.Query()
	cfg := Config{
		Bucket:   u.Host,
		Endpoint: q.Get("endpoint"),
		Region:   q.Get("region"),
		Prefix:   strings.Trim(u.Path, "/"),
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	if v := q.Get("anonymous"); v != "" {
		cfg.Anonymous, err = strconv.ParseBool(v)
		if err != nil {
			return Config{}, archive.Errorf(archive.ErrURIInvalid, "anonymous: %w", err)
		}
	}
	if u.User != nil {
		cfg.AccessKey = u.User.Username()
		cfg.SecretKey, _ = u.User.Password()
	}
	return cfg, nil
}

// S3Storage implements archive.Backend for S3-compatible object stores
type S3Storage struct {
	cfg    archive.BackendConfig
	logger *zap.Logger
}

// New creates an S3 backend.
func New(cfg archive.BackendConfig) archive.Backend {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Storage{cfg: cfg, logger: logger}
}

func (s *S3Storage) Kind() archive.Kind { return archive.KindS3 }

// Connect builds a client and checks the bucket is reachable.
func (s *S3Storage) Connect(ctx context.Context) (archive.Session, error) {
	cfg, err := ParseURI(s.cfg.URI)
	if err != nil {
		return nil, err
	}

	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, archive.Errorf(archive.ErrConnectFailed, "loading AWS config: %w", err)
	}

	hctx := ctx
	if s.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		defer cancel()
	}
	if _, err := client.HeadBucket(hctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, archive.Errorf(archive.ErrConnectFailed, "bucket %s: %w", cfg.Bucket, err)
	}

	return &session{
		client: client,
		bucket: cfg.Bucket,
		prefix: path.Join(cfg.Prefix, s.cfg.Datastore),
		logger: s.logger,
	}, nil
}

func newClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired

		switch {
		case cfg.AccessKey != "":
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		case cfg.Anonymous:
			o.Credentials = aws.AnonymousCredentials{}
		}

		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO and most S3-compatible services
		}
	}), nil
}

type session struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

func (s *session) key(parts ...string) string {
	p := path.Join(parts...)
	if s.prefix == "" {
		return p
	}
	return s.prefix + "/" + p
}

func (s *session) Insert(ctx context.Context, rt archive.RecordType, record any) (string, error) {
	coll, err := rt.Collection()
	if err != nil {
		return "", err
	}
	body, err := docjson.Encode(record)
	if err != nil {
		return "", err
	}

	id := docjson.NewID()
	key := s.key(coll, id+".json")
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", archive.WrapError(archive.ErrInsertFailed, err)
	}

	s.logger.Debug("inserted record", zap.String("key", key), zap.String("id", id))
	return id, nil
}

func (s *session) Find(ctx context.Context, rt archive.RecordType, filter archive.Filter) (archive.Cursor, error) {
	coll, err := rt.Collection()
	if err != nil {
		return nil, err
	}
	m, err := docjson.NewMatcher(filter)
	if err != nil {
		return nil, err
	}

	keys, err := s.list(ctx, s.key(coll)+"/")
	if err != nil {
		return nil, archive.WrapError(archive.ErrQueryFailed, err)
	}

	docs := make([][]byte, 0, len(keys))
	for _, k := range keys {
		body, err := s.read(ctx, k)
		if err != nil {
			return nil, archive.Errorf(archive.ErrQueryFailed, "reading %s: %w", k, err)
		}
		if m.Match(body) {
			docs = append(docs, body)
		}
	}
	return docjson.NewCursor(docs), nil
}

func (s *session) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			k := aws.ToString(obj.Key)
			// skip anything nested below the collection
			if strings.HasSuffix(k, ".json") && !strings.Contains(strings.TrimPrefix(k, prefix), "/") {
				keys = append(keys, k)
			}
		}
	}
	return keys, nil
}

func (s *session) read(ctx context.Context, key string) ([]byte, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer output.Body.Close()
	return io.ReadAll(output.Body)
}

func (s *session) Close(ctx context.Context) error { return nil }
