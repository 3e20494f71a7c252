// Package source resolves index locations that may live on another machine.
//
// Local paths are used in place. Anything go-getter recognises as remote
// (http, https, s3::, gcs::, git::) is downloaded into a local directory and
// treated as read-only by callers.
package source

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter"
	"go.uber.org/zap"

	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/logger"
)

// Source is a resolved index location.
type Source struct {
	// Path is the local file to load
	Path string
	// Original is the location as given by the user
	Original string
	// Remote is true when Path is a downloaded copy
	Remote bool

	cleanup func()
}

// Cleanup removes a downloaded copy. It is a no-op for local sources.
func (s *Source) Cleanup() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

// Resolve maps src to a local file. Remote sources are fetched into dir;
// when dir is empty a temporary directory is created and removed by Cleanup.
func Resolve(ctx context.Context, src, dir string, log *zap.SugaredLogger) (*Source, error) {
	log = logger.OrDefault(log)
	if src == "" {
		return nil, errors.NewValidationError("empty index source")
	}

	expanded, err := expandHome(src)
	if err != nil {
		return nil, err
	}

	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}
	detected, err := getter.Detect(expanded, pwd, getter.Detectors)
	if err != nil {
		return nil, errors.WithHint(
			errors.NewValidationError("unrecognised index source %q: %v", src, err),
			"use a file path or an http(s)://, s3:: or git:: address")
	}
	log.Debugw("source detected", "input", src, "detected", detected)

	if isLocal(detected) {
		p := expanded
		if !filepath.IsAbs(p) {
			p = filepath.Join(pwd, p)
		}
		return &Source{Path: filepath.Clean(p), Original: src}, nil
	}
	return fetch(ctx, src, detected, dir, log)
}

// IsRemote reports whether src would be downloaded by Resolve.
func IsRemote(src string) bool {
	expanded, err := expandHome(src)
	if err != nil {
		return false
	}
	detected, err := getter.Detect(expanded, ".", getter.Detectors)
	if err != nil {
		return false
	}
	return !isLocal(detected)
}

func isLocal(detected string) bool {
	u, err := url.Parse(detected)
	if err != nil {
		return true
	}
	return u.Scheme == "" || u.Scheme == "file"
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	if p == "~" {
		return home, nil
	}
	return filepath.Join(home, p[2:]), nil
}

func fetch(ctx context.Context, src, detected, dir string, log *zap.SugaredLogger) (*Source, error) {
	cleanup := func() {}
	if dir == "" {
		tmp, err := os.MkdirTemp("", "idxtools-source-*")
		if err != nil {
			return nil, errors.WrapIO(err, "failed to create temp directory")
		}
		dir = tmp
		cleanup = func() {
			log.Debugw("removing fetched source", logger.FieldPath, tmp)
			os.RemoveAll(tmp)
		}
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapIOf(err, "create %s", dir)
	}

	dst := filepath.Join(dir, fileName(detected))
	log.Infow("fetching index", "input", src, "destination", dst)

	client := &getter.Client{
		Ctx:     ctx,
		Src:     detected,
		Dst:     dst,
		Mode:    getter.ClientModeFile,
		Getters: getter.Getters,
		// Compressed indexes are read as they are; the codec decompresses.
		Decompressors: map[string]getter.Decompressor{},
	}
	if err := client.Get(); err != nil {
		cleanup()
		return nil, errors.WrapIOf(err, "failed to fetch %s", src)
	}

	return &Source{Path: dst, Original: src, Remote: true, cleanup: cleanup}, nil
}

// fileName picks a local name for a fetched index from the last path
// element of the address.
func fileName(detected string) string {
	s := detected
	if i := strings.Index(s, "::"); i >= 0 {
		s = s[i+2:]
	}
	if u, err := url.Parse(s); err == nil && u.Path != "" {
		s = u.Path
	}
	name := path.Base(s)
	if name == "." || name == "/" || name == "" {
		return "index.txt"
	}
	return name
}
