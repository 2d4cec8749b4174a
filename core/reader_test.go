package core

import (
	"context"
	"strings"
	"testing"

	"github.com/huangsam/stackreport/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listingStore adds key enumeration to memStore.
type listingStore struct {
	*memStore
}

func (l listingStore) Keys(_ context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for k := range l.docs {
		if rest, ok := strings.CutPrefix(k, bucket+"/"); ok && strings.HasPrefix(rest, prefix) {
			keys = append(keys, rest)
		}
	}
	return keys, nil
}

func seededReader(t *testing.T) (*Reader, *memStore) {
	t.Helper()
	store := newMemStore()
	ctx := context.Background()

	doc := schema.NewReportDocument("2018-08-22", "2018-08-22", "2018-08-23T10:00:00")
	doc.StacksSummary.Ecosystems[schema.NPM] = schema.EcosystemSummary{
		Trending: schema.Trending{TopDeps: []schema.TrendEntry{{Name: "lodash 4.17.10", Count: 2}}},
	}
	require.NoError(t, store.PutJSON(ctx, testBucket, "v2/daily/2018-08-23.json", doc))
	require.NoError(t, store.PutJSON(ctx, testBucket, "v2/daily/2018-08-22.json", doc))
	require.NoError(t, store.PutJSON(ctx, testBucket, "v2/daily/archive/old.json", doc))
	require.NoError(t, store.PutJSON(ctx, testBucket, "v2/weekly/2018-08-22.json", doc))

	ing := schema.NewIngestionReport("2018-08-22", "2018-08-22", "x")
	require.NoError(t, store.PutJSON(ctx, testBucket, schema.IngestionReportKey("2018-08-23"), ing))

	return &Reader{Store: listingStore{store}, Bucket: testBucket}, store
}

func TestReaderStackReport(t *testing.T) {
	r, _ := seededReader(t)
	ctx := context.Background()

	doc, err := r.StackReport(ctx, schema.Daily, "2018-08-23")
	require.NoError(t, err)
	assert.Equal(t, "2018-08-22", doc.Report.From)

	_, err = r.StackReport(ctx, schema.Monthly, "2018-08")
	assert.ErrorIs(t, err, ErrReportNotFound)

	_, err = r.StackReport(ctx, schema.Frequency("hourly"), "x")
	assert.Error(t, err)
}

func TestReaderTrending(t *testing.T) {
	r, _ := seededReader(t)
	ctx := context.Background()

	trending, err := r.Trending(ctx, schema.Daily, "2018-08-23", schema.NPM)
	require.NoError(t, err)
	assert.Equal(t, []schema.TrendEntry{{Name: "lodash 4.17.10", Count: 2}}, trending.TopDeps)

	_, err = r.Trending(ctx, schema.Daily, "2018-08-23", schema.Maven)
	assert.Error(t, err)
}

func TestReaderIngestionReport(t *testing.T) {
	r, _ := seededReader(t)

	report, err := r.IngestionReport(context.Background(), "2018-08-23")
	require.NoError(t, err)
	assert.Equal(t, "2018-08-22", report.Report.From)

	_, err = r.IngestionReport(context.Background(), "2018-08-01")
	assert.ErrorIs(t, err, ErrReportNotFound)
}

func TestReaderListReports(t *testing.T) {
	r, store := seededReader(t)

	names, err := r.ListReports(context.Background(), schema.Daily)
	require.NoError(t, err)
	assert.Equal(t, []string{"2018-08-23", "2018-08-22"}, names)

	plain := &Reader{Store: store, Bucket: testBucket}
	_, err = plain.ListReports(context.Background(), schema.Daily)
	assert.Error(t, err, "stores without key listing cannot enumerate")
}
