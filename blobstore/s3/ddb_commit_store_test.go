package s3

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/phyalf/blobstore"
)

func newTestDDBCommitStore(ddb *mockDDBClient, baseURI string) (*DDBCommitStore, *MockS3Client) {
	client := new(MockS3Client)
	return NewDDBCommitStore(NewStore(client, "test-bucket", "test/"), ddb, "phyalf-commits", baseURI), client
}

func TestDDBCommitStore_FirstCommit(t *testing.T) {
	ctx := t.Context()
	store, _ := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/test/")

	require.NoError(t, store.Put(ctx, CurrentName, []byte("manifest-1.json")))

	got, err := blobstore.ReadAll(ctx, store, CurrentName)
	require.NoError(t, err)
	assert.Equal(t, "manifest-1.json", string(got))

	v, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v)
}

func TestDDBCommitStore_MultipleCommits(t *testing.T) {
	ctx := t.Context()
	store, _ := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/test/")

	for i := 1; i <= 12; i++ {
		require.NoError(t, store.Put(ctx, CurrentName, fmt.Appendf(nil, "manifest-%d.json", i)))
	}

	blob, err := store.Open(ctx, CurrentName)
	require.NoError(t, err)
	defer blob.Close()

	buf := make([]byte, 100)
	n, _ := blob.ReadAt(ctx, buf, 0)
	assert.Equal(t, "manifest-12.json", string(buf[:n]))

	v, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), v)
}

func TestDDBCommitStore_ConcurrentCommits(t *testing.T) {
	ctx := t.Context()
	store, _ := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/test/")
	require.NoError(t, store.Put(ctx, CurrentName, []byte("manifest-1.json")))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Put(ctx, CurrentName, fmt.Appendf(nil, "manifest-%d.json", i+2))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConcurrentModification):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Positive(t, successes)
	v, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1+successes), v)
}

func TestDDBCommitStore_NotFoundBeforeCommit(t *testing.T) {
	store, _ := newTestDDBCommitStore(newMockDDBClient(), "s3://test-bucket/test/")

	_, err := store.Open(t.Context(), CurrentName)
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestDDBCommitStore_IsolatedNamespaces(t *testing.T) {
	ctx := t.Context()
	ddb := newMockDDBClient()
	store1, _ := newTestDDBCommitStore(ddb, "s3://bucket-a/path/")
	store2, _ := newTestDDBCommitStore(ddb, "s3://bucket-b/path/")

	require.NoError(t, store1.Put(ctx, CurrentName, []byte("manifest-a.json")))
	require.NoError(t, store2.Put(ctx, CurrentName, []byte("manifest-b.json")))

	got, err := blobstore.ReadAll(ctx, store1, CurrentName)
	require.NoError(t, err)
	assert.Equal(t, "manifest-a.json", string(got))

	got, err = blobstore.ReadAll(ctx, store2, CurrentName)
	require.NoError(t, err)
	assert.Equal(t, "manifest-b.json", string(got))
}

func TestDDBCommitStore_DefaultBaseURI(t *testing.T) {
	store, _ := newTestDDBCommitStore(newMockDDBClient(), "")
	assert.Equal(t, "s3://test-bucket/test/", store.baseURI)
}

func TestDDBCommitStore_DelegatesBlobs(t *testing.T) {
	ctx := t.Context()
	store, client := newTestDDBCommitStore(newMockDDBClient(), "")

	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "test/spikes.times.npy"
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, store.Put(ctx, "spikes.times.npy", []byte("npy")))
	client.AssertExpectations(t)

	_, err := store.Create(ctx, CurrentName)
	assert.Error(t, err)
}

func TestDDBCommitStore_PutIfNotExists(t *testing.T) {
	ctx := t.Context()
	store, client := newTestDDBCommitStore(newMockDDBClient(), "")

	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "test/manifest-1.json" && aws.ToString(in.IfNoneMatch) == "*"
	})).Return(&s3.PutObjectOutput{}, nil).Once()
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "test/manifest-2.json"
	})).Return(nil, &smithy.GenericAPIError{Code: "PreconditionFailed"}).Once()

	require.NoError(t, store.PutIfNotExists(ctx, "manifest-1.json", []byte("{}")))
	assert.ErrorIs(t, store.PutIfNotExists(ctx, "manifest-2.json", []byte("{}")), blobstore.ErrExists)
	assert.Error(t, store.PutIfNotExists(ctx, CurrentName, []byte("manifest-1.json")))
	client.AssertExpectations(t)
}
