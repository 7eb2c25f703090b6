// Package objectstore_test tests the NATS object store implementation.
package objectstore_test

import (
	"context"
	"testing"

	"github.com/book-expert/tts-editor/internal/objectstore"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

// StartTestServer starts an in-memory NATS server for testing purposes.
func StartTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	return natsServer, natsConnection
}

func newTestStore(t *testing.T) *objectstore.NatsObjectStore {
	t.Helper()

	natsServer, natsConnection := StartTestServer(t)
	t.Cleanup(natsServer.Shutdown)
	t.Cleanup(natsConnection.Close)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(jetstreamContext, "previews", 0)
	require.NoError(t, err)

	return store
}

func TestNatsObjectStore_UploadDownloadDelete(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	key := "preview-1"
	audio := []byte("ID3 fake preview audio")

	err := store.Upload(ctx, key, audio)
	require.NoError(t, err)

	downloaded, err := store.Download(ctx, key)
	require.NoError(t, err)
	require.Equal(t, audio, downloaded)

	err = store.Delete(ctx, key)
	require.NoError(t, err)

	_, err = store.Download(ctx, key)
	require.ErrorIs(t, err, objectstore.ErrObjectNotFound)

	err = store.Delete(ctx, key)
	require.NoError(t, err)
}

func TestNatsObjectStore_BindsExistingBucket(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := StartTestServer(t)
	t.Cleanup(natsServer.Shutdown)
	t.Cleanup(natsConnection.Close)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	first, err := objectstore.New(jetstreamContext, "shared", 0)
	require.NoError(t, err)

	err = first.Upload(context.Background(), "k", []byte("v"))
	require.NoError(t, err)

	second, err := objectstore.New(jetstreamContext, "shared", 0)
	require.NoError(t, err)

	data, err := second.Download(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), data)
}
