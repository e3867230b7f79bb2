package gcs_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	gcs "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	gcsstore "github.com/JakeFAU/job-skills-crawler/internal/storage/gcs"
)

const testBucket = "test-bucket"

func newTestClient(t *testing.T, handler http.Handler) *gcs.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := gcs.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestBlobStorePutObject(t *testing.T) {
	payload := []byte(`{"run_id":"r1"}`)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, fmt.Sprintf("/b/%s/o", testBucket))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), string(payload))
		fmt.Fprintln(w, `{ "name": "snapshots/run.json" }`)
	})

	store, err := gcsstore.New(newTestClient(t, handler), gcsstore.Config{Bucket: testBucket})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "snapshots/run.json", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "gs://test-bucket/snapshots/run.json", uri)
}

func TestBlobStorePutObjectError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	store, err := gcsstore.New(newTestClient(t, handler), gcsstore.Config{Bucket: testBucket})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "snapshots/run.json", "application/json", bytes.NewReader([]byte("{}")))
	assert.Error(t, err)
}

func TestCursorStoreSave(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "posting-42")
		fmt.Fprintln(w, `{ "name": "cursor/marker.txt" }`)
	})

	store, err := gcsstore.NewCursorStore(newTestClient(t, handler), testBucket, "cursor/marker.txt")
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), "posting-42"))
}

func TestConstructorsValidate(t *testing.T) {
	t.Parallel()

	_, err := gcsstore.New(nil, gcsstore.Config{Bucket: testBucket})
	require.Error(t, err)
	_, err = gcsstore.NewCursorStore(nil, testBucket, "marker")
	require.Error(t, err)
}
