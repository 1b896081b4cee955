package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/anthanhphan/go-model-share/internal/api/config"
	"github.com/anthanhphan/go-model-share/internal/api/domain"
	"github.com/anthanhphan/go-model-share/internal/api/port"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(id string, uploadedMS int64) domain.ModelRecord {
	return domain.ModelRecord{
		ID:               id,
		RemoteURL:        "https://res.cloudinary.com/demo/raw/upload/3d_models/" + id + ".glb",
		OriginalFilename: id + ".glb",
		SizeBytes:        2097152,
		SizeLabel:        "2 MB",
		UploadedAt:       time.UnixMilli(uploadedMS).UTC(),
	}
}

func ids(records []domain.ModelRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

type storeFactory func(t *testing.T) port.CacheStore

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) port.CacheStore {
			return NewMemoryStore()
		},
		"logfile": func(t *testing.T) port.CacheStore {
			s, err := NewLogFileStore(config.LogFileConfig{DataDir: t.TempDir(), CompactionThreshold: 4}, "")
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) port.CacheStore {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "models.db"))
			require.NoError(t, err)
			return s
		},
		"redis": func(t *testing.T) port.CacheStore {
			mr := miniredis.RunT(t)
			return NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
		},
	}
}

func TestCacheStore_GetMissing(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer func() { _ = store.Close() }()

			rec, err := store.Get(context.Background(), "model_1_missing")
			assert.Nil(t, rec)
			assert.ErrorIs(t, err, port.ErrRecordNotFound)
		})
	}
}

func TestCacheStore_PutGet(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer func() { _ = store.Close() }()
			ctx := context.Background()

			want := testRecord("model_1710000000000_chair", 1710000000000)
			require.NoError(t, store.Put(ctx, want))

			got, err := store.Get(ctx, want.ID)
			require.NoError(t, err)
			assert.Equal(t, want, *got)
		})
	}
}

func TestCacheStore_ListAllOrdering(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer func() { _ = store.Close() }()
			ctx := context.Background()

			require.NoError(t, store.Put(ctx, testRecord("a", 100)))
			require.NoError(t, store.Put(ctx, testRecord("b", 200)))
			require.NoError(t, store.Put(ctx, testRecord("c", 100)))

			all, err := store.ListAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "a", "c"}, ids(all))
		})
	}
}

func TestCacheStore_OverwriteKeepsPosition(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer func() { _ = store.Close() }()
			ctx := context.Background()

			require.NoError(t, store.Put(ctx, testRecord("a", 100)))
			require.NoError(t, store.Put(ctx, testRecord("c", 100)))

			updated := testRecord("a", 100)
			updated.RemoteURL = "https://res.cloudinary.com/demo/image/upload/3d_models/a.glb"
			updated.SizeLabel = domain.UnknownSizeLabel
			require.NoError(t, store.Put(ctx, updated))

			all, err := store.ListAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "c"}, ids(all))
			assert.Equal(t, updated.RemoteURL, all[0].RemoteURL)
		})
	}
}

func TestCacheStore_RemoveIsIdempotent(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer func() { _ = store.Close() }()
			ctx := context.Background()

			require.NoError(t, store.Put(ctx, testRecord("a", 100)))
			require.NoError(t, store.Put(ctx, testRecord("b", 200)))

			require.NoError(t, store.Remove(ctx, "a"))
			require.NoError(t, store.Remove(ctx, "a"))
			require.NoError(t, store.Remove(ctx, "never-stored"))

			_, err := store.Get(ctx, "a")
			assert.ErrorIs(t, err, port.ErrRecordNotFound)

			all, err := store.ListAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"b"}, ids(all))
		})
	}
}

func TestCacheStore_EmptyListIsNotNil(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer func() { _ = store.Close() }()

			all, err := store.ListAll(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, all)
			assert.Empty(t, all)
		})
	}
}

func TestRedisStore_UsesPrefixedKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Put(context.Background(), testRecord("model_1710000000000_chair", 1)))

	assert.True(t, mr.Exists("model_model_1710000000000_chair"))
	assert.True(t, mr.Exists("model_index"))
}

func TestRedisStore_SkipsEntriesDeletedOutOfBand(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testRecord("a", 100)))
	require.NoError(t, store.Put(ctx, testRecord("b", 200)))
	mr.Del("model_a")

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(all))
}
