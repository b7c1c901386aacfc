package state

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/formtap/pkg/errors"
)

const sampleDoc = `{"bookmarks":{"abc":{"date_to_resume":"2024-01-01T00:00:00Z"}}}`

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	store := NewFileStore(path)

	doc, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, doc)

	require.NoError(t, store.Save(ctx, []byte(sampleDoc)))
	require.NoError(t, store.Save(ctx, []byte(`{"bookmarks":{}}`)))

	doc, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"bookmarks":{}}`, string(doc))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
	require.NoError(t, store.Close())
}

type fakeRedis struct {
	data   map[string]string
	setErr error
	closed bool
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client := &fakeRedis{data: map[string]string{}}
	store := NewRedisStore(client, "formtap:state")

	doc, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, doc)

	require.NoError(t, store.Save(ctx, []byte(sampleDoc)))
	doc, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleDoc, string(doc))

	client.setErr = stderrors.New("READONLY")
	err = store.Save(ctx, []byte(sampleDoc))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeState))

	require.NoError(t, store.Close())
	assert.True(t, client.closed)
}

type fakeRow struct {
	value string
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.value
	return nil
}

type fakePgx struct {
	rows    map[string]string
	queries []string
	closed  bool
}

func (f *fakePgx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.queries = append(f.queries, sql)
	if len(args) == 2 {
		f.rows[args[0].(string)] = args[1].(string)
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakePgx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.queries = append(f.queries, sql)
	v, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{value: v}
}

func (f *fakePgx) Close() { f.closed = true }

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	db := &fakePgx{rows: map[string]string{}}
	store := NewPostgresStore(db, "tap state", "formtap")

	require.NoError(t, store.EnsureTable(ctx))
	assert.Contains(t, db.queries[0], `CREATE TABLE IF NOT EXISTS "tap state"`)

	doc, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, doc)

	require.NoError(t, store.Save(ctx, []byte(sampleDoc)))
	doc, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleDoc, string(doc))

	require.NoError(t, store.Close())
	assert.True(t, db.closed)
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	client := &fakeS3{objects: map[string][]byte{}}
	store := NewS3Store(client, "bucket", "formtap/state.json")

	doc, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, doc)

	require.NoError(t, store.Save(ctx, []byte(sampleDoc)))
	assert.Contains(t, client.objects, "bucket/formtap/state.json")

	doc, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleDoc, string(doc))
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "formtap.db")

	store, err := OpenSQLiteStore(ctx, path, "formtap")
	require.NoError(t, err)

	doc, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, doc)

	require.NoError(t, store.Save(ctx, []byte(sampleDoc)))
	require.NoError(t, store.Save(ctx, []byte(`{"bookmarks":{}}`)))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteStore(ctx, path, "formtap")
	require.NoError(t, err)
	defer reopened.Close()

	doc, err = reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"bookmarks":{}}`, string(doc))
}
