package resolver

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/dshills/tripdesk-mcp/internal/matcher"
	"github.com/dshills/tripdesk-mcp/internal/normalize"
	"github.com/dshills/tripdesk-mcp/internal/semantic"
	"github.com/dshills/tripdesk-mcp/internal/slug"
	"github.com/dshills/tripdesk-mcp/internal/storage"
	"github.com/dshills/tripdesk-mcp/pkg/types"
)

// Method names the stage that produced a resolution
type Method string

const (
	MethodSlug     Method = "slug"
	MethodWeighted Method = "weighted"
	MethodSemantic Method = "semantic"
)

// State is a step of the resolution state machine
type State string

const (
	StateSlugLookup    State = "SLUG_LOOKUP"
	StateWeightedMatch State = "WEIGHTED_MATCH"
	StateSemanticMatch State = "SEMANTIC_MATCH"
	StateNoMatch       State = "NO_MATCH"
)

const (
	// SlugConfidence is the confidence of an exact slug hit
	SlugConfidence = 1.0

	DefaultLimit     = 5
	MaxLimit         = 20
	MaxQueryLength   = 500
	DefaultCacheSize = 512
	DefaultCacheTTL  = 5 * time.Minute
)

// Store is the storage the resolver reads
type Store interface {
	GetTrip(ctx context.Context, tripID int64) (*types.Trip, error)
	ListTrips(ctx context.Context) ([]*types.Trip, error)
	ListAllAssignments(ctx context.Context) ([]types.ClientAssignment, error)
	ListSearchRows(ctx context.Context) ([]storage.SearchRow, error)
}

// FactReader reads cached trip facts
type FactReader interface {
	Get(ctx context.Context, tripID int64) (*types.TripFacts, error)
}

// Stages holds the matching engines tried in order
type Stages struct {
	Slugs    *slug.Registry
	Weighted *matcher.Matcher
	Semantic *semantic.Index
}

// Options configures a Resolver
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
	Facts     FactReader // Optional; enables Request.IncludeFacts
	Logger    *zap.Logger
}

// Request contains parameters for a resolution
type Request struct {
	Query        string
	Limit        int  // Maximum number of alternative candidates
	IncludeFacts bool // Attach cached TripFacts to the resolution
}

// Resolution is a successful resolution
type Resolution struct {
	TripID      int64              `json:"trip_id"`
	Name        string             `json:"name"`
	Slug        string             `json:"slug,omitempty"`
	Confidence  float64            `json:"confidence"`
	Method      Method             `json:"method"`
	Explanation []string           `json:"explanation"`
	Candidates  []types.Suggestion `json:"candidates,omitempty"`
	Facts       *types.TripFacts   `json:"facts,omitempty"`
	CacheHit    bool               `json:"cache_hit,omitempty"`
	Duration    time.Duration      `json:"-"`
}

// cacheEntry represents a cached resolution with expiration time
type cacheEntry struct {
	resolution *Resolution
	expiresAt  time.Time
}

// Resolver maps free-text queries to trips through slug lookup, weighted
// token matching and semantic component matching, in that order
type Resolver struct {
	store  Store
	norm   *normalize.Normalizer
	stages Stages
	opts   Options
	now    func() time.Time

	cache      *lru.Cache[[32]byte, *cacheEntry]
	cacheMu    sync.RWMutex
	generation atomic.Uint64

	classifier atomic.Pointer[matcher.Classifier]
	stale      atomic.Bool
	vocabMu    sync.Mutex
}

// New creates a Resolver
func New(store Store, n *normalize.Normalizer, stages Stages, opts Options) (*Resolver, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	cache, err := lru.New[[32]byte, *cacheEntry](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	r := &Resolver{
		store:  store,
		norm:   n,
		stages: stages,
		opts:   opts,
		now:    time.Now,
		cache:  cache,
	}
	r.stale.Store(true)
	return r, nil
}

// Invalidate drops every cached resolution and marks the classifier
// vocabulary stale. Writers call it after any trip or assignment change.
func (r *Resolver) Invalidate() {
	r.generation.Add(1)
	r.stale.Store(true)
	r.cacheMu.Lock()
	r.cache.Purge()
	r.cacheMu.Unlock()
}

// Resolve runs the state machine for one query. It returns a
// *types.ValidationError for unusable input, a *types.NotFoundError when
// every stage is exhausted, and storage faults as is.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	startTime := r.now()

	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	hash := computeQueryHash(req)
	if cached := r.checkCache(hash); cached != nil {
		cached.CacheHit = true
		if err := r.attachFacts(ctx, req, cached); err != nil {
			return nil, err
		}
		cached.Duration = r.now().Sub(startTime)
		return cached, nil
	}

	gen := r.generation.Load()
	res, err := r.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if r.generation.Load() == gen {
		r.storeInCache(hash, res)
	}

	if err := r.attachFacts(ctx, req, res); err != nil {
		return nil, err
	}
	res.Duration = r.now().Sub(startTime)
	return res, nil
}

// run holds the evolving state of one resolution
type run struct {
	req         Request
	query       normalize.Result
	explanation []string
	suggestions []types.Suggestion
}

func (rn *run) explain(format string, args ...interface{}) {
	rn.explanation = append(rn.explanation, fmt.Sprintf(format, args...))
}

func (r *Resolver) resolve(ctx context.Context, req Request) (*Resolution, error) {
	rn := &run{req: req, query: r.norm.Normalize(req.Query)}
	rn.explain("normalized query: %q", rn.query.Text)
	if rn.query.Partial {
		rn.explain("normalizer: time budget exceeded, remaining words split without folding")
	}

	state := StateSlugLookup
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var res *Resolution
		var err error
		next := StateNoMatch
		switch state {
		case StateSlugLookup:
			res, err = r.slugLookup(ctx, rn)
			next = StateWeightedMatch
		case StateWeightedMatch:
			res, err = r.weightedMatch(ctx, rn)
			next = StateSemanticMatch
		case StateSemanticMatch:
			res, err = r.semanticMatch(ctx, rn)
		case StateNoMatch:
			return nil, r.noMatch(rn)
		}

		if err != nil {
			return nil, err
		}
		if res != nil {
			res.Explanation = rn.explanation
			r.opts.Logger.Debug("query resolved",
				zap.String("query", req.Query),
				zap.String("method", string(res.Method)),
				zap.Int64("trip_id", res.TripID),
				zap.Float64("confidence", res.Confidence),
			)
			return res, nil
		}
		state = next
	}
}

func (r *Resolver) slugLookup(ctx context.Context, rn *run) (*Resolution, error) {
	candidates := slug.Candidates(rn.req.Query, rn.query)
	if len(candidates) == 0 {
		rn.explain("slug: query is not slug-shaped")
		return nil, nil
	}
	for _, c := range candidates {
		trip, err := r.stages.Slugs.Resolve(ctx, c)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rn.explain("slug: %q is the slug of trip %d", c, trip.ID)
		return &Resolution{
			TripID:     trip.ID,
			Name:       trip.Name,
			Slug:       trip.Slug,
			Confidence: SlugConfidence,
			Method:     MethodSlug,
		}, nil
	}
	rn.explain("slug: no trip has slug %s", strings.Join(candidates, " or "))
	return nil, nil
}

func (r *Resolver) weightedMatch(ctx context.Context, rn *run) (*Resolution, error) {
	classifier, err := r.currentClassifier(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.store.ListSearchRows(ctx)
	if err != nil {
		return nil, err
	}

	res, err := r.stages.Weighted.Match(rn.query, classifier, rows)
	var cerr *types.ComplexityError
	if errors.As(err, &cerr) {
		r.opts.Logger.Warn("weighted stage skipped", zap.Error(err))
		rn.explain("weighted: %v; escalating", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	top, ok := res.Top()
	if !ok {
		rn.explain("weighted: no trip shares a term with the query")
		return nil, nil
	}

	suggestions := make([]types.Suggestion, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		suggestions = append(suggestions, types.Suggestion{
			TripID: c.TripID, Name: c.Name, Slug: c.Slug, Confidence: c.Confidence, Method: string(MethodWeighted),
		})
	}
	rn.suggestions = suggestions

	if !res.Confident {
		rn.explain("weighted: best candidate %q scored %.2f, below threshold %.2f", top.Name, top.Confidence, r.stages.Weighted.Threshold())
		return nil, nil
	}
	rn.explain("weighted: %q scored %.2f on terms %s", top.Name, top.Confidence, strings.Join(top.MatchedTerms, ", "))
	return &Resolution{
		TripID:     top.TripID,
		Name:       top.Name,
		Slug:       top.Slug,
		Confidence: top.Confidence,
		Method:     MethodWeighted,
		Candidates: limitSuggestions(suggestions[1:], rn.req.Limit),
	}, nil
}

func (r *Resolver) semanticMatch(ctx context.Context, rn *run) (*Resolution, error) {
	classifier, err := r.currentClassifier(ctx)
	if err != nil {
		return nil, err
	}

	res, err := r.stages.Semantic.Match(ctx, rn.query, classifier)
	var cerr *types.ComplexityError
	if errors.As(err, &cerr) {
		r.opts.Logger.Warn("semantic stage skipped", zap.Error(err))
		rn.explain("semantic: %v", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(res.Candidates) == 0 {
		rn.explain("semantic: no trip shares a component with the query")
		return nil, nil
	}

	suggestions := make([]types.Suggestion, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		trip, err := r.store.GetTrip(ctx, c.TripID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, types.Suggestion{
			TripID: trip.ID, Name: trip.Name, Slug: trip.Slug, Confidence: c.Confidence, Method: string(MethodSemantic),
		})
	}
	if len(suggestions) == 0 {
		rn.explain("semantic: matching trips no longer exist")
		return nil, nil
	}
	rn.suggestions = suggestions

	top := res.Candidates[0]
	best := suggestions[0]
	if !res.Confident || best.TripID != top.TripID {
		rn.explain("semantic: best candidate %q scored %.2f, below threshold %.2f", best.Name, best.Confidence, r.stages.Semantic.Threshold())
		return nil, nil
	}

	kinds := make([]string, 0, len(top.MatchedTypes))
	for _, t := range top.MatchedTypes {
		kinds = append(kinds, string(t))
	}
	rn.explain("semantic: %q scored %.2f on %s components (%s)", best.Name, top.Confidence,
		strings.Join(kinds, ", "), strings.Join(top.Matched, ", "))
	return &Resolution{
		TripID:     best.TripID,
		Name:       best.Name,
		Slug:       best.Slug,
		Confidence: top.Confidence,
		Method:     MethodSemantic,
		Candidates: limitSuggestions(suggestions[1:], rn.req.Limit),
	}, nil
}

// noMatch builds the not-found error with the suggestions of the furthest
// stage that produced any
func (r *Resolver) noMatch(rn *run) error {
	nf := &types.NotFoundError{
		Query:        rn.req.Query,
		Suggestions:  limitSuggestions(rn.suggestions, rn.req.Limit),
		Alternatives: alternatives(rn),
	}
	if nf.Suggestions == nil {
		nf.Suggestions = []types.Suggestion{}
	}
	r.opts.Logger.Info("query unresolved",
		zap.String("query", rn.req.Query),
		zap.Int("suggestions", len(nf.Suggestions)),
	)
	return nf
}

func alternatives(rn *run) []string {
	alts := make([]string, 0, 4)
	if len(rn.suggestions) > 0 {
		best := rn.suggestions[0]
		if best.Slug != "" {
			alts = append(alts, fmt.Sprintf("if you meant %q, resolve it by its slug %q", best.Name, best.Slug))
		} else {
			alts = append(alts, fmt.Sprintf("if you meant %q, use trip id %d", best.Name, best.TripID))
		}
	}
	if !hasEmail(rn.query.Tokens) {
		alts = append(alts, "search by the client's email address, e.g. jane.doe@example.com")
	}
	alts = append(alts,
		"add the destination and travel year, e.g. \"hawaii 2025\"",
		"check the spelling of client and destination names",
	)
	return alts
}

func hasEmail(tokens []string) bool {
	for _, t := range tokens {
		if types.EmailPattern.MatchString(t) {
			return true
		}
	}
	return false
}

func limitSuggestions(s []types.Suggestion, limit int) []types.Suggestion {
	if len(s) > limit {
		s = s[:limit]
	}
	out := make([]types.Suggestion, len(s))
	copy(out, s)
	return out
}

// currentClassifier returns the classifier, rebuilding its vocabulary
// after invalidation
func (r *Resolver) currentClassifier(ctx context.Context) (*matcher.Classifier, error) {
	if c := r.classifier.Load(); c != nil && !r.stale.Load() {
		return c, nil
	}

	r.vocabMu.Lock()
	defer r.vocabMu.Unlock()
	if c := r.classifier.Load(); c != nil && !r.stale.Load() {
		return c, nil
	}

	// Cleared before reading so an invalidation during the rebuild sticks
	r.stale.Store(false)
	trips, err := r.store.ListTrips(ctx)
	if err != nil {
		r.stale.Store(true)
		return nil, fmt.Errorf("failed to load vocabulary: %w", err)
	}
	assignments, err := r.store.ListAllAssignments(ctx)
	if err != nil {
		r.stale.Store(true)
		return nil, fmt.Errorf("failed to load vocabulary: %w", err)
	}

	vocab := matcher.NewVocabulary(r.norm, trips, assignments)
	c := matcher.NewClassifier(vocab)
	r.classifier.Store(c)

	names, destinations, emails := vocab.Size()
	r.opts.Logger.Debug("classifier vocabulary rebuilt",
		zap.Int("names", names),
		zap.Int("destinations", destinations),
		zap.Int("emails", emails),
	)
	return c, nil
}

func (r *Resolver) attachFacts(ctx context.Context, req Request, res *Resolution) error {
	if !req.IncludeFacts || r.opts.Facts == nil {
		return nil
	}
	facts, err := r.opts.Facts.Get(ctx, res.TripID)
	if errors.Is(err, storage.ErrNotFound) {
		res.Explanation = append(res.Explanation, "facts: not computed yet")
		return nil
	}
	if err != nil {
		return err
	}
	res.Facts = facts
	return nil
}

// validateRequest ensures the request is usable and applies defaults
func validateRequest(req *Request) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return types.NewValidationError("query", "must not be empty")
	}
	if len(req.Query) > MaxQueryLength {
		return types.NewValidationError("query", fmt.Sprintf("must be at most %d characters", MaxQueryLength))
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	return nil
}

// checkCache looks up a cached resolution
func (r *Resolver) checkCache(hash [32]byte) *Resolution {
	now := r.now()

	r.cacheMu.RLock()
	entry, found := r.cache.Get(hash)
	if !found {
		r.cacheMu.RUnlock()
		return nil
	}

	// Check if entry has expired while holding read lock to avoid race condition
	if now.After(entry.expiresAt) {
		r.cacheMu.RUnlock()

		r.cacheMu.Lock()
		r.cache.Remove(hash)
		r.cacheMu.Unlock()
		return nil
	}

	res := copyResolution(entry.resolution)
	r.cacheMu.RUnlock()
	return res
}

// storeInCache saves a resolution without its facts, which are read fresh
func (r *Resolver) storeInCache(hash [32]byte, res *Resolution) {
	entry := &cacheEntry{
		resolution: copyResolution(res),
		expiresAt:  r.now().Add(r.opts.CacheTTL),
	}
	entry.resolution.Facts = nil

	r.cacheMu.Lock()
	r.cache.Add(hash, entry)
	r.cacheMu.Unlock()
}

// copyResolution creates a deep copy of a Resolution
func copyResolution(src *Resolution) *Resolution {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Explanation = append([]string(nil), src.Explanation...)
	dst.Candidates = append([]types.Suggestion(nil), src.Candidates...)
	if src.Facts != nil {
		facts := *src.Facts
		dst.Facts = &facts
	}
	return &dst
}

// computeQueryHash computes a unique hash for a resolution request
func computeQueryHash(req Request) [32]byte {
	var data strings.Builder
	data.WriteString(strings.ToLower(req.Query))
	data.WriteString("|")
	data.WriteString(fmt.Sprintf("%d", req.Limit))
	return sha256.Sum256([]byte(data.String()))
}
