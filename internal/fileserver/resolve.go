package fileserver

import (
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const IndexFile = "index.html"

// Outcome is the result of resolving one request against the document root.
// Exactly one of Path and Page is set: Path is a file to read from disk,
// Page is an embedded error page.
type Outcome struct {
	Status   int
	Path     string
	MimeType string
	Page     []byte
}

func errorOutcome(status int) Outcome {
	return Outcome{
		Status:   status,
		MimeType: "text/html",
		Page:     errorPage(status),
	}
}

// Resolver maps request paths to files below a document root.
type Resolver struct {
	root          string
	canonicalRoot string

	stat         func(string) (fs.FileInfo, error)
	evalSymlinks func(string) (string, error)
}

// NewResolver canonicalizes root once and checks that it is a directory.
func NewResolver(root string) (*Resolver, error) {
	if root == "" {
		return nil, fmt.Errorf("document root is empty")
	}

	canonical, err := canonicalize(root, filepath.EvalSymlinks)
	if err != nil {
		return nil, fmt.Errorf("resolve document root %s: %w", root, err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("stat document root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document root %s is not a directory", root)
	}

	sep := string(os.PathSeparator)
	return &Resolver{
		root:          strings.TrimRight(root, sep) + sep,
		canonicalRoot: canonical,
		stat:          os.Stat,
		evalSymlinks:  filepath.EvalSymlinks,
	}, nil
}

// Root returns the document root with its trailing separator.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve decides the status and resource for req:
//
//	405 for any method other than GET and HEAD, without touching the disk;
//	404 if the path does not exist or canonicalizes outside the root;
//	403 if the path is a directory without an index file;
//	200 with the file otherwise.
func (r *Resolver) Resolve(req Request) Outcome {
	if !req.Allowed() {
		return errorOutcome(http.StatusMethodNotAllowed)
	}

	candidate := r.root + req.Path

	info, err := r.stat(candidate)
	if err != nil {
		return errorOutcome(http.StatusNotFound)
	}

	canonical, ok := r.contained(candidate)
	if !ok {
		return errorOutcome(http.StatusNotFound)
	}

	if info.IsDir() {
		candidate = joinIndex(candidate)

		info, err = r.stat(candidate)
		if err != nil || info.IsDir() {
			return errorOutcome(http.StatusForbidden)
		}

		canonical, ok = r.contained(candidate)
		if !ok {
			return errorOutcome(http.StatusNotFound)
		}
	}

	return Outcome{
		Status:   http.StatusOK,
		Path:     canonical,
		MimeType: MimeType(candidate),
	}
}

// contained canonicalizes path and reports whether it is the root or lies
// below it.
func (r *Resolver) contained(path string) (string, bool) {
	canonical, err := canonicalize(path, r.evalSymlinks)
	if err != nil {
		return "", false
	}

	if canonical == r.canonicalRoot {
		return canonical, true
	}

	prefix := r.canonicalRoot
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}

	return canonical, strings.HasPrefix(canonical, prefix)
}

func canonicalize(path string, evalSymlinks func(string) (string, error)) (string, error) {
	resolved, err := evalSymlinks(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(resolved)
}

// joinIndex appends the index file name with exactly one separator.
func joinIndex(dir string) string {
	sep := string(os.PathSeparator)
	return strings.TrimRight(dir, sep) + sep + IndexFile
}
