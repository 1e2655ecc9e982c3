// Package localfs archives records as JSON files on the local filesystem, one file
// per record under <base>/<datastore>/<collection>/<id>.json.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/newthinker/lasr-archive/archive"
	"github.com/newthinker/lasr-archive/archive/docjson"
	"go.uber.org/zap"
)

const ext = ".json"

func init() {
	archive.Register(archive.KindLocalFS, New)
}

// LocalFS implements archive.Backend for the local filesystem
type LocalFS struct {
	cfg    archive.BackendConfig
	logger *zap.Logger
}

// New creates a LocalFS backend. The URI is a file:// URL or a plain path.
func New(cfg archive.BackendConfig) archive.Backend {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalFS{cfg: cfg, logger: logger}
}

func (l *LocalFS) Kind() archive.Kind { return archive.KindLocalFS }

// Connect resolves and creates the datastore directory.
func (l *LocalFS) Connect(ctx context.Context) (archive.Session, error) {
	base, err := basePath(l.cfg.URI)
	if err != nil {
		return nil, err
	}
	if !validDatastore(l.cfg.Datastore) {
		return nil, archive.Errorf(archive.ErrConfigInvalid, "datastore %q is not a valid directory name", l.cfg.Datastore)
	}

	root := filepath.Join(base, l.cfg.Datastore)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, archive.Errorf(archive.ErrConnectFailed, "creating base path: %w", err)
	}
	return &session{root: root, logger: l.logger}, nil
}

// validDatastore reports whether name is a single directory below the base path.
func validDatastore(name string) bool {
	switch name {
	case "", ".", "..":
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

func basePath(raw string) (string, error) {
	if raw == "" {
		return "", archive.Errorf(archive.ErrURIInvalid, "empty URI")
	}
	if !strings.Contains(raw, "://") {
		return filepath.Clean(raw), nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", archive.InvalidURI(raw, err)
	}
	if u.Scheme != "file" {
		return "", archive.Errorf(archive.ErrURIInvalid, "scheme must be file, got %q", u.Scheme)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", archive.Errorf(archive.ErrURIInvalid, "remote host %q not supported", u.Host)
	}
	if u.Path == "" {
		return "", archive.Errorf(archive.ErrURIInvalid, "missing path")
	}
	return filepath.FromSlash(u.Path), nil
}

type session struct {
	root   string
	logger *zap.Logger
}

func (s *session) dir(rt archive.RecordType) (string, error) {
	coll, err := rt.Collection()
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, coll), nil
}

func (s *session) Insert(ctx context.Context, rt archive.RecordType, record any) (string, error) {
	dir, err := s.dir(rt)
	if err != nil {
		return "", err
	}
	body, err := docjson.Encode(record)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", archive.WrapError(archive.ErrInsertFailed, err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", archive.Errorf(archive.ErrInsertFailed, "creating directories: %w", err)
	}

	id := docjson.NewID()
	final := filepath.Join(dir, id+ext)

	// write then rename so readers never see a partial file
	tmp, err := os.CreateTemp(dir, ".tmp-"+id+"-*")
	if err != nil {
		return "", archive.WrapError(archive.ErrInsertFailed, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return "", archive.WrapError(archive.ErrInsertFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return "", archive.WrapError(archive.ErrInsertFailed, err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", archive.WrapError(archive.ErrInsertFailed, err)
	}

	s.logger.Debug("inserted record", zap.String("path", final), zap.String("id", id))
	return id, nil
}

func (s *session) Find(ctx context.Context, rt archive.RecordType, filter archive.Filter) (archive.Cursor, error) {
	dir, err := s.dir(rt)
	if err != nil {
		return nil, err
	}
	m, err := docjson.NewMatcher(filter)
	if err != nil {
		return nil, err
	}

	paths, err := list(dir)
	if err != nil {
		return nil, archive.WrapError(archive.ErrQueryFailed, err)
	}

	docs := make([][]byte, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, archive.WrapError(archive.ErrQueryFailed, err)
		}
		body, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, archive.Errorf(archive.ErrQueryFailed, "reading %s: %w", filepath.Base(p), err)
		}
		if m.Match(body) {
			docs = append(docs, body)
		}
	}
	return docjson.NewCursor(docs), nil
}

func (s *session) Close(ctx context.Context) error { return nil }

// list returns the record files in dir. A missing directory holds no records.
func list(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ext) && !strings.HasPrefix(d.Name(), ".") {
			paths = append(paths, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}
