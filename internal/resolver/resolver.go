// Package resolver orchestrates the lex→parse→cache pipeline and is the
// only component aware of all the others.
//
// A single document resolves synchronously and fail-fast. Concurrency
// happens at whole-document granularity: independent inputs are parsed
// in parallel by a bounded worker pool, all sharing one content cache.
// The cache is owned by whoever constructed the resolver and is threaded
// through explicitly; there is no ambient global state.
package resolver

import (
	"context"
	"errors"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/jcomeauictx/blockparser/internal/block"
	"github.com/jcomeauictx/blockparser/internal/cache"
	"github.com/jcomeauictx/blockparser/internal/errs"
	"github.com/jcomeauictx/blockparser/internal/logging"
	"github.com/jcomeauictx/blockparser/internal/parser"
	"github.com/jcomeauictx/blockparser/internal/token"
)

// Resolver sequences the lexer, parser and content cache for one or
// more documents.
type Resolver struct {
	cache   *cache.ContentCache
	logger  logging.Logger
	workers int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache shares an existing content cache. Without it the resolver
// creates its own with default ceilings.
func WithCache(cc *cache.ContentCache) Option {
	return func(r *Resolver) { r.cache = cc }
}

// WithLogger sets the structured logger. Defaults to discard.
func WithLogger(logger logging.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithWorkers bounds document-level parallelism in ResolveAll.
func WithWorkers(n int) Option {
	return func(r *Resolver) { r.workers = n }
}

// New constructs a resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = cache.New(0, 0)
	}
	if r.logger == nil {
		r.logger = logging.Discard()
	}
	if r.workers <= 0 {
		r.workers = runtime.NumCPU()
		if r.workers > 8 {
			r.workers = 8
		}
	}
	return r
}

// Cache returns the content cache the resolver threads through parses.
func (r *Resolver) Cache() *cache.ContentCache { return r.cache }

// Resolve parses input into its finalized root block. Any lexical or
// structural error propagates immediately with the offending byte
// offset translated to a line/column; no partial output is produced.
func (r *Resolver) Resolve(ctx context.Context, input []byte) (*block.Block, error) {
	return r.resolve(ctx, "", input)
}

// ResolveFile reads path and resolves its contents. The file name is
// carried into diagnostics.
func (r *Resolver) ResolveFile(ctx context.Context, path string) (*block.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, path, data)
}

func (r *Resolver) resolve(ctx context.Context, name string, input []byte) (*block.Block, error) {
	start := time.Now()
	root, err := parser.Parse(ctx, input, r.cache)
	if err != nil {
		return nil, locate(err, name, input)
	}
	r.logger.Debug("document resolved",
		"file", name,
		"bytes", len(input),
		"blocks", root.Count(),
		"duration", time.Since(start),
	)
	return root, nil
}

// locate attaches file name and derived line/column to lex and parse
// errors before they reach the caller.
func locate(err error, name string, input []byte) error {
	var lexErr *errs.LexError
	if errors.As(err, &lexErr) {
		lexErr.File = name
		lexErr.Pos = token.Locate(input, lexErr.Offset)
		return lexErr
	}
	var parseErr *errs.ParseError
	if errors.As(err, &parseErr) {
		parseErr.File = name
		parseErr.Pos = token.Locate(input, parseErr.Offset)
		return parseErr
	}
	return err
}

// Input is one named document for batch resolution.
type Input struct {
	Name string
	Data []byte
}

// Result pairs an input with its resolved root or failure. Results come
// back in input order regardless of completion order.
type Result struct {
	Name string
	Root *block.Block
	Err  error
}

// ResolveAll resolves independent documents concurrently over a bounded
// worker pool sharing the resolver's cache. Per-document failures land
// in the corresponding Result; one malformed document never aborts its
// siblings. Cross-document completion order is unspecified — same-digest
// insert races are settled by the cache's idempotent insert.
func (r *Resolver) ResolveAll(ctx context.Context, inputs []Input) []Result {
	results := make([]Result, len(inputs))
	if len(inputs) == 0 {
		return results
	}

	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	for i := range inputs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			root, err := r.resolve(ctx, inputs[i].Name, inputs[i].Data)
			results[i] = Result{Name: inputs[i].Name, Root: root, Err: err}
		}(i)
	}
	wg.Wait()
	return results
}

// LoadPersisted primes the cache from a persisted cache file. Storage
// failures are absorbed and logged: the persisted cache is purely an
// optimization, so a document parse must never fail because of it.
func (r *Resolver) LoadPersisted(path string) {
	if path == "" {
		return
	}
	res, err := r.cache.LoadFile(path)
	if err != nil {
		r.logger.Warn("persisted cache unusable, continuing with cold cache",
			"path", path, "error", err.Error())
		return
	}
	if res.Skipped > 0 {
		r.logger.Warn("persisted cache records failed digest validation",
			"path", path, "skipped", res.Skipped)
	}
	r.logger.Debug("persisted cache loaded", "path", path, "entries", res.Loaded)
}

// SavePersisted writes the cache back to disk, absorbing failures the
// same way.
func (r *Resolver) SavePersisted(path string) {
	if path == "" {
		return
	}
	if err := r.cache.SaveFile(path); err != nil {
		r.logger.Warn("persisted cache not saved", "path", path, "error", err.Error())
		return
	}
	r.logger.Debug("persisted cache saved", "path", path, "entries", r.cache.Len())
}
