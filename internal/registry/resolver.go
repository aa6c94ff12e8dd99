package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/karlseguin/ccache/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kcache/kawai/internal/kawaierr"
)

// cacheTTL is effectively "for the lifetime of the engine": ccache requires
// a finite duration, so this picks one far longer than any realistic
// process lifetime rather than modeling true infinity.
const cacheTTL = 10 * 365 * 24 * time.Hour

// ResolvedRef pairs a schema reference with the raw schema text fetched for
// it, handed to a Parser so family parsers can resolve named subschemas.
type ResolvedRef struct {
	Reference
	Raw RawSchema
}

// Parser parses raw schema text plus its resolved references into a
// family-native AST. Implemented once per family by internal/translate and
// wired into the Resolver as a single dispatch point keyed by family tag.
type Parser interface {
	Parse(schemaType SchemaType, text string, refs []ResolvedRef) (any, error)
}

// Scope distinguishes where a binding's schema came from, for introspection
// via Resolver.Bindings.
type Scope int

const (
	ScopeInline Scope = iota
	ScopeRegistered
	ScopeFallback
)

func (s Scope) String() string {
	switch s {
	case ScopeInline:
		return "inline"
	case ScopeRegistered:
		return "registered"
	case ScopeFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Binding is one resolved (topic, role) pair, exposed read-only for
// debugging/introspection.
type Binding struct {
	Topic    string
	Role     Role
	Scope    Scope
	Resolved ResolvedSchema
}

// Resolver implements resolve(topic, role) -> ResolvedSchema, with a
// compute-if-absent cache (single-flight coalescing concurrent first
// resolutions, ccache as the backing store) and binary-fallback-on-failure
// for every directive that requires registry I/O.
type Resolver struct {
	client Client
	parser Parser
	logger *zap.SugaredLogger

	cache  *ccache.Cache
	flight singleflight.Group

	nextInlineID int64 // atomic; always produces a fresh negative value

	bindMu   sync.RWMutex
	bindings map[string]Binding
}

// NewResolver builds a Resolver over client (real or mock) using parser for
// every family's schema text, logging fallback/recovery decisions through
// logger.
func NewResolver(client Client, parser Parser, logger *zap.SugaredLogger) *Resolver {
	return &Resolver{
		client:   client,
		parser:   parser,
		logger:   logger,
		cache:    ccache.New(ccache.Configure().MaxSize(10000)),
		bindings: make(map[string]Binding),
	}
}

func cacheKey(topic string, role Role) string {
	return topic + "\x00" + role.String()
}

// nextInline returns the next value of the monotonic negative id counter,
// used to key the decoder cache for inline schemas that arrive with no
// registry-assigned id.
func (r *Resolver) nextInline() int {
	return int(atomic.AddInt64(&r.nextInlineID, -1))
}

// Resolve implements resolve(topic, role) -> ResolvedSchema. At most one
// resolution attempt per (topic, role) is ever in flight; concurrent
// callers during that attempt share its result, including a fallback.
func (r *Resolver) Resolve(topic string, role Role, d Directive) (ResolvedSchema, error) {
	key := cacheKey(topic, role)
	if item := r.cache.Get(key); item != nil && !item.Expired() {
		return item.Value().(ResolvedSchema), nil
	}

	v, err, _ := r.flight.Do(key, func() (any, error) {
		resolved, scope, rerr := r.resolveUncached(topic, role, d)
		if rerr != nil {
			return nil, rerr
		}
		r.cache.Set(key, resolved, cacheTTL)
		r.recordBinding(topic, role, scope, resolved)
		return resolved, nil
	})
	if err != nil {
		return ResolvedSchema{}, err
	}
	return v.(ResolvedSchema), nil
}

func (r *Resolver) recordBinding(topic string, role Role, scope Scope, resolved ResolvedSchema) {
	r.bindMu.Lock()
	defer r.bindMu.Unlock()
	r.bindings[cacheKey(topic, role)] = Binding{Topic: topic, Role: role, Scope: scope, Resolved: resolved}
}

// Bindings returns a snapshot of every (topic, role) binding resolved so
// far, for introspection and debugging.
func (r *Resolver) Bindings() []Binding {
	r.bindMu.RLock()
	defer r.bindMu.RUnlock()
	out := make([]Binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		out = append(out, b)
	}
	return out
}

func (r *Resolver) resolveUncached(topic string, role Role, d Directive) (ResolvedSchema, Scope, error) {
	switch d.Kind {
	case DirectivePrimitive:
		return PrimitiveResolved(d.Primitive), ScopeInline, nil

	case DirectiveInline:
		parsed, err := r.parseWithRefs(d.SchemaType, d.Text, d.Refs, r.nextInline())
		if err != nil {
			r.logFallback(topic, role, "inline schema failed to parse", err)
			return PrimitiveResolved(Binary), ScopeFallback, nil
		}
		return StructuralResolved(parsed), ScopeInline, nil

	case DirectiveLatest:
		subject := Subject(topic, role)
		raw, err := r.client.LatestForSubject(subject)
		if err != nil {
			r.logFallback(topic, role, "registry unreachable for subject "+subject, err)
			return PrimitiveResolved(Binary), ScopeFallback, nil
		}
		parsed, err := r.parseRaw(raw)
		if err != nil {
			r.logFallback(topic, role, "failed to parse latest schema for subject "+subject, err)
			return PrimitiveResolved(Binary), ScopeFallback, nil
		}
		return StructuralResolved(parsed), ScopeRegistered, nil

	case DirectiveByID:
		raw, err := r.client.ByID(d.ID)
		if err != nil {
			r.logFallback(topic, role, "registry unreachable for id", err)
			return PrimitiveResolved(Binary), ScopeFallback, nil
		}
		parsed, err := r.parseRaw(raw)
		if err != nil {
			r.logFallback(topic, role, "failed to parse schema by id", err)
			return PrimitiveResolved(Binary), ScopeFallback, nil
		}
		return StructuralResolved(parsed), ScopeRegistered, nil

	default:
		return ResolvedSchema{}, ScopeInline, kawaierr.New(kawaierr.KindConfig, "unrecognized directive kind", nil)
	}
}

func (r *Resolver) logFallback(topic string, role Role, msg string, err error) {
	if r.logger == nil {
		return
	}
	r.logger.Warnw("schema resolution falling back to binary",
		"topic", topic, "role", role.String(), "reason", msg, "error", err)
}

func (r *Resolver) resolveRefs(refs []Reference) ([]ResolvedRef, error) {
	out := make([]ResolvedRef, 0, len(refs))
	for _, ref := range refs {
		resolved, err := r.resolveOneRef(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

func (r *Resolver) resolveOneRef(ref Reference) (ResolvedRef, error) {
	raw, err := r.client.LatestForSubject(ref.Subject)
	if err != nil {
		return ResolvedRef{}, kawaierr.New(kawaierr.KindResolve, "failed to resolve schema reference "+ref.Subject, err)
	}
	return ResolvedRef{Reference: ref, Raw: raw}, nil
}

func (r *Resolver) parseRaw(raw RawSchema) (*ParsedSchema, error) {
	refs, err := r.resolveRefs(raw.Refs)
	if err != nil {
		return nil, err
	}
	ast, err := r.parser.Parse(raw.SchemaType, raw.Text, refs)
	if err != nil {
		return nil, err
	}
	return &ParsedSchema{Family: familyFor(raw.SchemaType), AST: ast, Refs: raw.Refs, Text: raw.Text, ID: raw.ID}, nil
}

func (r *Resolver) parseWithRefs(schemaType SchemaType, text string, refs []Reference, id int) (*ParsedSchema, error) {
	resolvedRefs, err := r.resolveRefs(refs)
	if err != nil {
		return nil, err
	}
	ast, err := r.parser.Parse(schemaType, text, resolvedRefs)
	if err != nil {
		return nil, err
	}
	return &ParsedSchema{Family: familyFor(schemaType), AST: ast, Refs: refs, Text: text, ID: id}, nil
}

// ClearCache drops every resolved binding. Called on engine close to reset
// any registry scope allocated for testing.
func (r *Resolver) ClearCache() {
	r.cache.Clear()
	r.bindMu.Lock()
	r.bindings = make(map[string]Binding)
	r.bindMu.Unlock()
}
