//go:build integration

package s3store

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/newthinker/lasr-archive/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
)

type testDocument struct {
	Thing      string `json:"thing"`
	OtherThing string `json:"otherthing"`
}

func TestMinIORoundTrip(t *testing.T) {
	ctx := context.Background()
	mc, err := tcminio.Run(ctx, "minio/minio:RELEASE.2024-01-16T16-07-38Z",
		tcminio.WithUsername("archive"),
		tcminio.WithPassword("archive-secret"),
	)
	if err != nil {
		t.Skipf("skip: cannot start minio: %v", err)
	}
	t.Cleanup(func() { _ = mc.Terminate(ctx) })

	hostPort, err := mc.ConnectionString(ctx)
	require.NoError(t, err)
	endpoint := "http://" + hostPort

	cfg := Config{Bucket: "lasr", Endpoint: endpoint, Region: defaultRegion, AccessKey: "archive", SecretKey: "archive-secret"}
	client, err := newClient(ctx, cfg)
	require.NoError(t, err)
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String("lasr")})
	require.NoError(t, err)

	uri := fmt.Sprintf("s3://archive:archive-secret@lasr/cold?endpoint=%s", url.QueryEscape(endpoint))
	store, err := archive.NewBuilder().URI(uri).Backend(archive.KindS3).Datastore("lasr_archive_test").Build()
	require.NoError(t, err)

	id, err := store.Create(ctx, archive.RecordAccount, testDocument{Thing: "a", OtherThing: "b"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	docs, err := archive.FindAll[testDocument](ctx, store, archive.RecordAccount)
	require.NoError(t, err)
	assert.Equal(t, []testDocument{{Thing: "a", OtherThing: "b"}}, docs)

	batches, err := archive.FindAll[testDocument](ctx, store, archive.RecordTransactionBatch)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestMissingBucketIsConnectError(t *testing.T) {
	store, err := archive.NewBuilder().
		URI("s3://a:b@lasr?endpoint=http://127.0.0.1:1").
		Backend(archive.KindS3).
		Datastore("lasr_archive_test").
		Build()
	require.NoError(t, err)

	_, err = store.Create(context.Background(), archive.RecordAccount, testDocument{})
	assert.ErrorIs(t, err, archive.ErrConnectFailed)
}
