package loader

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/i2y/prototree/tree"
)

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{CacheSize: -1})
	assert.Error(t, err)

	_, err = New(Config{Timeout: -time.Second})
	assert.Error(t, err)

	_, err = New(Config{ImportPaths: []string{""}})
	assert.Error(t, err)

	_, err = New(DefaultConfig())
	assert.NoError(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "inventory.pb", compileBytes(t))
	l := newLoader(t, DefaultConfig())

	s, err := l.Load(context.Background(), path)
	require.NoError(t, err)

	item, ok := s.LookupType(".inventory.v1.Item")
	require.True(t, ok)
	assert.Equal(t, " A stocked item.\n", item.Comment())
	assert.Equal(t, []string{"inventory.proto"}, s.Files())

	// Without well-known completion the timestamp import is missing.
	assert.Empty(t, item.Field("updated_at").ResolvedTypeName())
}

func TestLoadCachesBySource(t *testing.T) {
	path := writeFile(t, t.TempDir(), "inventory.pb", compileBytes(t))
	l := newLoader(t, DefaultConfig())

	first, err := l.Load(context.Background(), path)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	second, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Same(t, first, second)

	l.Forget(path)
	_, err = l.Load(context.Background(), path)
	assert.Error(t, err)
}

func TestLoadWithoutCache(t *testing.T) {
	path := writeFile(t, t.TempDir(), "inventory.pb", compileBytes(t))
	l := newLoader(t, Config{})

	first, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	second, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestLoadPurge(t *testing.T) {
	path := writeFile(t, t.TempDir(), "inventory.pb", compileBytes(t))
	l := newLoader(t, DefaultConfig())

	_, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	l.Purge()
	require.NoError(t, os.Remove(path))

	_, err = l.Load(context.Background(), path)
	assert.Error(t, err)
}

func TestLoadWellKnownCompletion(t *testing.T) {
	path := writeFile(t, t.TempDir(), "inventory.pb", compileBytes(t))
	cfg := DefaultConfig()
	cfg.IncludeWellKnown = true
	l := newLoader(t, cfg)

	s, err := l.Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"google/protobuf/timestamp.proto", "inventory.proto"}, s.Files())
	item, ok := s.LookupType(".inventory.v1.Item")
	require.True(t, ok)
	assert.Equal(t, ".google.protobuf.Timestamp", item.Field("updated_at").ResolvedTypeName())
}

func TestLoadErrorsByStage(t *testing.T) {
	dir := t.TempDir()

	invalid := &descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{{
		Name: proto.String("bad.proto"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name:  proto.String("Bad"),
			Field: []*descriptorpb.FieldDescriptorProto{{Name: proto.String("f")}},
		}},
	}}}
	invalidBytes, err := proto.Marshal(invalid)
	require.NoError(t, err)

	tests := []struct {
		name   string
		source string
		stage  Stage
		is     error
	}{
		{name: "missing file", source: dir + "/missing.pb", stage: StageFetch, is: os.ErrNotExist},
		{name: "empty source", source: "", stage: StageFetch, is: ErrEmptySource},
		{name: "garbage", source: writeFile(t, dir, "garbage.pb", []byte{0xff, 0xff, 0xff}), stage: StageDecode},
		{name: "malformed tree", source: writeFile(t, dir, "invalid.pb", invalidBytes), stage: StageBuild, is: tree.ErrMissingFieldNumber},
	}

	l := newLoader(t, DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Load(context.Background(), tt.source)
			require.Error(t, err)

			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.stage, le.Stage)
			assert.Equal(t, tt.source, le.Source)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestLoadSharesConcurrentFetches(t *testing.T) {
	data := compileBytes(t)
	var requests atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		<-release
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	l := newLoader(t, DefaultConfig())
	source := srv.URL + "/inventory.pb"

	const callers = 8
	var wg sync.WaitGroup
	schemas := make([]*tree.Schema, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			schemas[i], errs[i] = l.Load(context.Background(), source)
		}(i)
	}

	require.Eventually(t, func() bool { return requests.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), requests.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, schemas[0], schemas[i])
	}
}

func TestLoadTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	l := newLoader(t, Config{Timeout: 50 * time.Millisecond})

	_, err := l.Load(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGo(t *testing.T) {
	path := writeFile(t, t.TempDir(), "inventory.pb", compileBytes(t))
	l := newLoader(t, DefaultConfig())

	select {
	case res := <-l.Go(context.Background(), path):
		require.NoError(t, res.Err)
		_, ok := res.Schema.LookupService(".inventory.v1.InventoryService")
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("no result delivered")
	}

	res := <-l.Go(context.Background(), path+".missing")
	assert.Nil(t, res.Schema)
	assert.Error(t, res.Err)
}

func TestGoAbandoned(t *testing.T) {
	path := writeFile(t, t.TempDir(), "inventory.pb", compileBytes(t))
	l := newLoader(t, DefaultConfig())

	_ = l.Go(context.Background(), path)

	// The abandoned load still completes and fills the cache.
	require.Eventually(t, func() bool {
		_, ok := l.cache.Get(path)
		return ok
	}, 5*time.Second, 5*time.Millisecond)
}

func TestLoadLogs(t *testing.T) {
	path := writeFile(t, t.TempDir(), "inventory.pb", compileBytes(t))
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	cfg := DefaultConfig()
	cfg.Logger = &logger
	l := newLoader(t, cfg)

	_, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	_, err = l.Load(context.Background(), path)
	require.NoError(t, err)
	_, err = l.Load(context.Background(), path+".missing")
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"message":"schema loaded"`)
	assert.Contains(t, out, `"message":"cache hit"`)
	assert.Contains(t, out, `"message":"load failed"`)
	assert.Contains(t, out, `"stage":"fetch"`)
	assert.Contains(t, out, `"component":"loader"`)
}

func TestFetch(t *testing.T) {
	path := writeFile(t, t.TempDir(), "inventory.pb", compileBytes(t))
	cfg := DefaultConfig()
	cfg.IncludeWellKnown = true
	l := newLoader(t, cfg)

	set, err := l.Fetch(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, set.GetFile(), 2)
	assert.Equal(t, "google/protobuf/timestamp.proto", set.GetFile()[0].GetName())

	// Fetch does not populate the cache.
	_, ok := l.cache.Get(path)
	assert.False(t, ok)
}
