package codegen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/sync/singleflight"

	"github.com/sitegen-ai/sitegen/internal/apps"
	"github.com/sitegen-ai/sitegen/internal/log"
	"github.com/sitegen-ai/sitegen/internal/security"
)

// Cache lifetime defaults.
const (
	DefaultCacheWriteTTL = 30 * time.Minute
	DefaultCacheIdleTTL  = 10 * time.Minute
)

// DefaultMemoryTurns bounds the conversation window per app.
const DefaultMemoryTurns = 20

// Options configures client construction.
type Options struct {
	ModelName    string // single/multi-file model
	ProjectModel string // project-mode model; falls back to ModelName
	MemoryTurns  int
	MaxToolCalls int
	WriteTTL     time.Duration
	IdleTTL      time.Duration
}

func (o *Options) applyDefaults() {
	if o.MemoryTurns <= 0 {
		o.MemoryTurns = DefaultMemoryTurns
	}
	if o.MaxToolCalls <= 0 {
		o.MaxToolCalls = DefaultMaxToolCalls
	}
	if o.WriteTTL <= 0 {
		o.WriteTTL = DefaultCacheWriteTTL
	}
	if o.IdleTTL <= 0 {
		o.IdleTTL = DefaultCacheIdleTTL
	}
	if o.ProjectModel == "" {
		o.ProjectModel = o.ModelName
	}
}

type cacheKey struct {
	appID   int64
	genType apps.GenType
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%d_%s", k.appID, k.genType)
}

type cacheEntry struct {
	client     *Client
	writtenAt  time.Time
	lastAccess time.Time
}

// buildFn constructs a client for a key. Swapped out in tests.
type buildFn func(ctx context.Context, appID int64, genType apps.GenType, skipNewest bool) (*Client, error)

// Factory builds generation clients and caches them per
// (app, generation type). Cached entries expire a fixed time after
// creation or after their last access, whichever comes first; expiry
// is checked passively on lookup, and an expired entry is never
// returned. Edit-mode requests bypass the cache entirely so they
// always see the freshest history.
type Factory struct {
	g       *genkit.Genkit
	history HistorySource
	saver   *Saver
	guard   *security.PromptValidator
	tools   []ai.Tool
	opts    Options
	logger  log.Logger

	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
	group   singleflight.Group

	clock func() time.Time
	build buildFn
}

// NewFactory creates a Factory. The project tools are registered on g
// once, here.
func NewFactory(g *genkit.Genkit, hist HistorySource, saver *Saver, opts Options, logger log.Logger) (*Factory, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if hist == nil {
		return nil, fmt.Errorf("history source is required")
	}
	if saver == nil {
		return nil, fmt.Errorf("saver is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	opts.applyDefaults()

	f := &Factory{
		g:       g,
		history: hist,
		saver:   saver,
		guard:   security.NewPromptValidator(),
		tools:   RegisterProjectTools(g),
		opts:    opts,
		logger:  logger,
		entries: make(map[cacheKey]*cacheEntry),
		clock:   time.Now,
	}
	f.build = f.buildClient
	return f, nil
}

// GetOrCreate returns the generation client for (appID, genType).
//
// Edit mode constructs a fresh private client synchronously, loading
// history without skipping the newest turn. Non-edit mode serves from
// the cache; concurrent misses for the same key collapse into a single
// construction and all callers share the one client. Non-edit
// construction skips the most recent persisted turn, which is the
// message currently being answered.
func (f *Factory) GetOrCreate(ctx context.Context, appID int64, genType apps.GenType, editMode bool) (*Client, error) {
	if !genType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, genType)
	}

	if editMode {
		return f.build(ctx, appID, genType, false)
	}

	key := cacheKey{appID: appID, genType: genType}
	if c := f.lookup(key); c != nil {
		return c, nil
	}

	v, err, _ := f.group.Do(key.String(), func() (any, error) {
		// Another caller may have finished constructing while this one
		// waited for the flight slot.
		if c := f.lookup(key); c != nil {
			return c, nil
		}

		client, err := f.build(ctx, appID, genType, true)
		if err != nil {
			return nil, err
		}

		now := f.clock()
		f.mu.Lock()
		f.entries[key] = &cacheEntry{client: client, writtenAt: now, lastAccess: now}
		f.mu.Unlock()

		f.logger.Debug("generation client constructed",
			"app_id", appID, "gen_type", genType)
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Client), nil
}

// lookup returns the cached client or nil. Expired entries are removed
// and never returned; a hit refreshes the idle clock. Eviction does
// not affect in-flight generations already holding the client.
func (f *Factory) lookup(key cacheKey) *Client {
	now := f.clock()

	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[key]
	if !ok {
		return nil
	}
	if now.Sub(e.writtenAt) >= f.opts.WriteTTL || now.Sub(e.lastAccess) >= f.opts.IdleTTL {
		delete(f.entries, key)
		f.logger.Debug("generation client expired",
			"app_id", key.appID, "gen_type", key.genType,
			"age", now.Sub(e.writtenAt))
		return nil
	}
	e.lastAccess = now
	return e.client
}

// buildClient is the strategy router: it assembles the model binding,
// tools and guardrail for the generation type, with the conversation
// memory freshly loaded.
func (f *Factory) buildClient(ctx context.Context, appID int64, genType apps.GenType, skipNewest bool) (*Client, error) {
	mem := NewMemory(f.opts.MemoryTurns)
	LoadMemory(ctx, mem, f.history, appID, f.opts.MemoryTurns, skipNewest, f.logger)

	c := &Client{
		appID:   appID,
		genType: genType,
		mem:     mem,
		logger:  f.logger,
	}

	switch genType {
	case apps.GenHTML:
		c.run = directRun(f.g, f.opts.ModelName, htmlSystemPrompt)
	case apps.GenMultiFile:
		c.run = directRun(f.g, f.opts.ModelName, multiFileSystemPrompt)
	case apps.GenProject:
		ws, err := f.saver.Workspace(genType, appID)
		if err != nil {
			return nil, err
		}
		c.guard = f.guard
		c.run = toolLoopRun(f.g, f.opts.ProjectModel, projectSystemPrompt, ws,
			f.tools, f.opts.MaxToolCalls, f.logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, genType)
	}

	return c, nil
}
