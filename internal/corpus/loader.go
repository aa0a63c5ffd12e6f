// Package corpus loads documentation corpus files into a store. Files are
// YAML documents, one library version per document; each load replaces the
// snippet set of every library version it mentions.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/doccontext-mcp/internal/storage"
	"github.com/dshills/doccontext-mcp/pkg/types"
)

// ErrLoadInProgress is returned when a load is requested while another runs
var ErrLoadInProgress = errors.New("corpus load already in progress")

// ErrNoFiles is returned when a path or pattern matches no corpus files
var ErrNoFiles = errors.New("no corpus files found")

// Options configures a Loader
type Options struct {
	Workers int         // Files parsed concurrently; zero means NumCPU
	Logger  *log.Logger // Nil discards

	// OnLoaded runs after a library version is stored, for example to drop
	// cached results for it.
	OnLoaded func(id types.LibraryID)
}

// Statistics summarizes one load
type Statistics struct {
	Files     int
	Libraries int
	Snippets  int
	Failed    int
	Errors    []string
	Duration  time.Duration
}

// Loader writes corpus files into a store, one load at a time
type Loader struct {
	store    storage.Storage
	workers  int
	logger   *log.Logger
	onLoaded func(types.LibraryID)
	lock     loadLock
}

// NewLoader creates a loader for store
func NewLoader(store storage.Storage, opts Options) *Loader {
	l := &Loader{
		store:    store,
		workers:  opts.Workers,
		logger:   opts.Logger,
		onLoaded: opts.OnLoaded,
	}
	if l.workers <= 0 {
		l.workers = runtime.NumCPU()
	}
	if l.logger == nil {
		l.logger = log.New(io.Discard, "", 0)
	}
	return l
}

// Loading reports whether a load is running
func (l *Loader) Loading() bool {
	return l.lock.held()
}

// Load reads every corpus file selected by path and stores its libraries.
// Path may be a file, a directory (searched recursively for .yaml/.yml) or a
// doublestar glob such as "corpus/**/*.yaml". A malformed file is recorded in
// the statistics and skipped; storage errors abort the load.
func (l *Loader) Load(ctx context.Context, path string) (*Statistics, error) {
	if !l.lock.tryAcquire() {
		return nil, ErrLoadInProgress
	}
	defer l.lock.release()

	start := time.Now()
	files, err := Discover(path)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{Files: len(files)}
	var (
		libraries atomic.Int32
		snippets  atomic.Int32
		failed    atomic.Int32
		mu        sync.Mutex // Protects stats.Errors
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for _, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs, err := readFile(file)
			if err != nil {
				failed.Add(1)
				mu.Lock()
				stats.Errors = append(stats.Errors, err.Error())
				mu.Unlock()
				l.logger.Printf("corpus: skipping %s: %v", file, err)
				return nil
			}
			for _, doc := range docs {
				n, err := l.storeDocument(gctx, doc)
				if err != nil {
					if errors.Is(err, storage.ErrNotFound) || isValidation(err) {
						failed.Add(1)
						mu.Lock()
						stats.Errors = append(stats.Errors, err.Error())
						mu.Unlock()
						l.logger.Printf("corpus: skipping document in %s: %v", file, err)
						continue
					}
					return err
				}
				libraries.Add(1)
				snippets.Add(int32(n))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("corpus load failed: %w", err)
	}

	sort.Strings(stats.Errors)
	stats.Libraries = int(libraries.Load())
	stats.Snippets = int(snippets.Load())
	stats.Failed = int(failed.Load())
	stats.Duration = time.Since(start)

	l.logger.Printf("corpus: loaded %d libraries (%d snippets) from %d files in %s, %d failed",
		stats.Libraries, stats.Snippets, stats.Files, stats.Duration, stats.Failed)
	return stats, nil
}

// LoadReader stores the documents read from r. It shares the single-load
// lock with Load.
func (l *Loader) LoadReader(ctx context.Context, r io.Reader, source string) (*Statistics, error) {
	if !l.lock.tryAcquire() {
		return nil, ErrLoadInProgress
	}
	defer l.lock.release()

	start := time.Now()
	docs, err := Decode(r, source)
	if err != nil {
		return nil, err
	}
	stats := &Statistics{Files: 1}
	for _, doc := range docs {
		n, err := l.storeDocument(ctx, doc)
		if err != nil {
			return nil, err
		}
		stats.Libraries++
		stats.Snippets += n
	}
	stats.Duration = time.Since(start)
	return stats, nil
}

func (l *Loader) storeDocument(ctx context.Context, doc *Document) (int, error) {
	lib, err := doc.Library()
	if err != nil {
		return 0, err
	}
	snippets, err := doc.ToSnippets()
	if err != nil {
		return 0, err
	}

	if err := l.store.UpsertLibrary(ctx, lib); err != nil {
		return 0, fmt.Errorf("store library %s: %w", lib.LibraryID(), err)
	}
	if err := l.store.ReplaceSnippets(ctx, lib.ID, snippets); err != nil {
		return 0, fmt.Errorf("store snippets for %s: %w", lib.LibraryID(), err)
	}

	if l.onLoaded != nil {
		l.onLoaded(lib.LibraryID())
	}
	return len(snippets), nil
}

func isValidation(err error) bool {
	return errors.Is(err, types.ErrInvalidLibraryID) ||
		errors.Is(err, types.ErrEmptySnippetID) ||
		errors.Is(err, types.ErrEmptySnippetCode) ||
		errors.Is(err, types.ErrInvalidQualityScore)
}

func readFile(path string) ([]*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Decode(f, path)
}

// Discover resolves path into a sorted list of corpus files
func Discover(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrNoFiles
	}

	var files []string
	if strings.ContainsAny(path, "*?[{") {
		matches, err := doublestar.FilepathGlob(path)
		if err != nil {
			return nil, fmt.Errorf("invalid corpus pattern %q: %w", path, err)
		}
		for _, m := range matches {
			if isCorpusFile(m) {
				files = append(files, m)
			}
		}
	} else {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("corpus path: %w", err)
		}
		if !info.IsDir() {
			return []string{path}, nil
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != path && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if isCorpusFile(p) {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk corpus directory: %w", err)
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, path)
	}
	sort.Strings(files)
	return files, nil
}

func isCorpusFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
