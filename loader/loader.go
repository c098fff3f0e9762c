// Package loader turns descriptor-set sources into indexed schemas.
//
// A source is a URL serving a serialized FileDescriptorSet, a gRPC or Connect server with
// reflection enabled, a .proto file, or a descriptor set on disk. Built schemas are cached
// per source and concurrent loads of the same source share one fetch.
package loader

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/i2y/prototree/tree"
)

// Default configuration values.
const (
	DefaultCacheSize = 16
	DefaultTimeout   = 30 * time.Second
)

// Config configures a Loader.
type Config struct {
	// CacheSize is the number of built schemas kept. Zero disables caching.
	CacheSize int `validate:"gte=0"`
	// Timeout bounds a single fetch. Zero means no timeout.
	Timeout time.Duration `validate:"gte=0"`
	// IncludeWellKnown adds imported google/protobuf files missing from a set.
	IncludeWellKnown bool
	// ImportPaths are searched for imports of .proto sources.
	ImportPaths []string `validate:"dive,required"`
	// Retry retries transient fetch failures. Nil means a single attempt.
	Retry *RetryPolicy

	// HTTPClient is used for http(s) sources. Defaults to http.DefaultClient.
	HTTPClient *http.Client `validate:"-"`
	// DialOptions are used for grpc sources.
	DialOptions []grpc.DialOption `validate:"-"`
	// Logger receives load events. Defaults to a disabled logger.
	Logger *zerolog.Logger `validate:"-"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		CacheSize: DefaultCacheSize,
		Timeout:   DefaultTimeout,
	}
}

var validate = validator.New()

// Loader loads and caches schemas. It is safe for concurrent use.
type Loader struct {
	cfg   Config
	log   zerolog.Logger
	cache *schemaCache
	group singleflight.Group
}

// Result is the outcome of a load started with Go.
type Result struct {
	Schema *tree.Schema
	Err    error
}

// New creates a loader.
func New(cfg Config) (*Loader, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "loader").Logger()
	}

	return &Loader{
		cfg:   cfg,
		log:   log,
		cache: newSchemaCache(cfg.CacheSize),
	}, nil
}

// Load returns the schema for source, building it on first use.
//
// Concurrent calls for the same source share a single fetch and build, which runs under the
// context of the call that started it. Failures are not cached. Errors are *LoadError.
func (l *Loader) Load(ctx context.Context, source string) (*tree.Schema, error) {
	key := strings.TrimSpace(source)
	if s, ok := l.cache.Get(key); ok {
		l.log.Debug().Str("source", key).Msg("cache hit")
		return s, nil
	}

	v, err, shared := l.group.Do(key, func() (any, error) {
		return l.load(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		l.log.Debug().Str("source", key).Msg("shared in-flight load")
	}
	return v.(*tree.Schema), nil
}

// Go runs Load in its own goroutine. Exactly one Result is delivered on the returned
// channel, which is buffered so the goroutine finishes even if nobody receives.
func (l *Loader) Go(ctx context.Context, source string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		s, err := l.Load(ctx, source)
		ch <- Result{Schema: s, Err: err}
	}()
	return ch
}

// Forget drops the cached schema for source.
func (l *Loader) Forget(source string) {
	l.cache.Remove(strings.TrimSpace(source))
}

// Purge drops every cached schema.
func (l *Loader) Purge() {
	l.cache.Clear()
}

func (l *Loader) load(ctx context.Context, source string) (*tree.Schema, error) {
	start := time.Now()
	log := l.log.With().Str("source", source).Logger()
	log.Debug().Msg("loading schema")

	s, err := l.fetchAndBuild(ctx, source)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			log.Error().Err(le.Err).Str("stage", string(le.Stage)).Msg("load failed")
		}
		return nil, err
	}

	l.cache.Put(source, s)
	log.Info().
		Int("files", len(s.Files())).
		Int("nodes", len(s.All())).
		Dur("took", time.Since(start)).
		Msg("schema loaded")

	return s, nil
}

// Fetch obtains and decodes the descriptor set of source without building or caching a
// tree. Well-known imports are completed when configured. Errors are *LoadError.
func (l *Loader) Fetch(ctx context.Context, source string) (*descriptorpb.FileDescriptorSet, error) {
	source = strings.TrimSpace(source)
	src, err := l.Source(source)
	if err != nil {
		return nil, newLoadError(source, StageFetch, err)
	}

	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}

	data, err := fetchWithRetry(ctx, src, l.cfg.Retry, func(attempt int, wait time.Duration, err error) {
		l.log.Warn().Err(err).Str("source", source).Int("attempt", attempt).Dur("backoff", wait).Msg("fetch failed, retrying")
	})
	if err != nil {
		return nil, newLoadError(source, StageFetch, err)
	}

	set := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(data, set); err != nil {
		return nil, newLoadError(source, StageDecode, err)
	}
	if l.cfg.IncludeWellKnown {
		set = completeWellKnown(set)
	}
	return set, nil
}

func (l *Loader) fetchAndBuild(ctx context.Context, source string) (*tree.Schema, error) {
	set, err := l.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}

	s, err := tree.Build(set)
	if err != nil {
		return nil, newLoadError(source, StageBuild, err)
	}
	return s, nil
}
