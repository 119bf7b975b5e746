package enrich

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mahatour/apperr"
	"mahatour/models"
	"mahatour/rdx"
	"mahatour/store"
	"mahatour/wikimedia"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLookup struct {
	mu    sync.Mutex
	terms []string
	fail  map[string]bool
	block bool
}

func (f *fakeLookup) Lookup(ctx context.Context, term string) (*models.ImageMatch, error) {
	f.mu.Lock()
	f.terms = append(f.terms, term)
	fail := f.fail[term]
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, apperr.Lookup("fake", ctx.Err())
	}
	if fail {
		return nil, apperr.Lookup("fake", errors.New("boom"))
	}
	slug := strings.ReplaceAll(strings.ToLower(term), " ", "_")
	return &models.ImageMatch{
		ImageURL: "https://upload.example/" + slug + ".jpg",
		Wikimedia: models.WikimediaInfo{
			ThumbnailURL:    "https://upload.example/thumb/" + slug + ".jpg",
			DescriptionHTML: "<p>" + term + "</p>",
			Artist:          "Photographer",
			AttributionURL:  "https://commons.example/" + slug,
			License:         "CC BY-SA 4.0",
			LicenseURL:      "https://creativecommons.org/licenses/by-sa/4.0",
		},
	}, nil
}

func (f *fakeLookup) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.terms)
}

type failingPersister struct{ calls int }

func (p *failingPersister) Persist(context.Context, models.Place) error {
	p.calls++
	return apperr.Storage("places.update", errors.New("connection refused"))
}

func batch() []models.Place {
	return []models.Place{
		{ID: "p1", Name: "Gateway of India", Category: "Monument", Location: "Mumbai"},
		{ID: "p2", Name: "Taj Hotel", Category: "hotel", Location: "Mumbai"},
		{ID: "p3", Name: "Ajanta Caves", Category: "heritage", Location: "Aurangabad", ImageURL: "https://own/ajanta.jpg"},
		{ID: "p4", Name: "Raigad Fort", Category: "attraction", Location: "Raigad"},
	}
}

func defaults() Options {
	return Options{Workers: 3, ItemTimeout: time.Second, BatchTimeout: 5 * time.Second}
}

func TestSearchTerm(t *testing.T) {
	assert.Equal(t, "Raigad Fort Raigad Maharashtra India",
		SearchTerm(models.Place{Name: "Raigad Fort", Location: "Raigad"}))
}

func TestEnrichIsNoOpWithoutEligiblePlaces(t *testing.T) {
	lookup := &fakeLookup{}
	svc := NewService(lookup, nil, defaults(), zap.NewNop())

	enriched := &models.WikimediaInfo{ThumbnailURL: "https://t", AttributionURL: "https://a", License: "CC0"}
	in := []models.Place{
		{ID: "a", Name: "Taj Hotel", Category: "hotel"},
		{ID: "b", Name: "Elephanta", Category: "heritage", Wikimedia: enriched},
	}

	res, err := svc.Enrich(context.Background(), NewCache(), in, defaults())
	require.NoError(t, err)
	assert.Equal(t, in, res.Places)
	assert.Zero(t, res.Updated)
	assert.Zero(t, lookup.calls())
}

func TestEnrichUpdatesEligiblePlacesInOrder(t *testing.T) {
	lookup := &fakeLookup{}
	svc := NewService(lookup, nil, defaults(), zap.NewNop())
	in := batch()

	res, err := svc.Enrich(context.Background(), NewCache(), in, defaults())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Updated)
	assert.Equal(t, 3, lookup.calls())

	require.Len(t, res.Places, 4)
	for i, p := range res.Places {
		assert.Equal(t, in[i].ID, p.ID)
	}
	assert.NotNil(t, res.Places[0].Wikimedia)
	assert.Contains(t, res.Places[0].ImageURL, "gateway_of_india")
	assert.Nil(t, res.Places[1].Wikimedia)
	assert.Empty(t, res.Places[1].ImageURL)
	assert.Equal(t, "https://own/ajanta.jpg", res.Places[2].ImageURL)
	require.NotNil(t, res.Places[2].Wikimedia)
	assert.Equal(t, "CC BY-SA 4.0", res.Places[2].Wikimedia.License)

	// the input slice is never modified
	assert.Nil(t, in[0].Wikimedia)
}

func TestEnrichAnswersUnchangedBatchFromCache(t *testing.T) {
	lookup := &fakeLookup{}
	svc := NewService(lookup, nil, defaults(), zap.NewNop())
	cache := NewCache()

	first, err := svc.Enrich(context.Background(), cache, batch(), defaults())
	require.NoError(t, err)
	require.Equal(t, 3, lookup.calls())

	reordered := batch()
	reordered[0], reordered[3] = reordered[3], reordered[0]
	second, err := svc.Enrich(context.Background(), cache, reordered, defaults())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 3, lookup.calls())
	assert.Equal(t, first.Places, second.Places)

	// a different id set is a new batch
	changed := append(batch(), models.Place{ID: "p5", Name: "Daulatabad", Category: "landmark"})
	third, err := svc.Enrich(context.Background(), cache, changed, defaults())
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 7, lookup.calls())
}

func TestEnrichCachesPassWithoutUpdates(t *testing.T) {
	lookup := &fakeLookup{fail: map[string]bool{"Raigad Fort Raigad Maharashtra India": true}}
	svc := NewService(lookup, nil, defaults(), zap.NewNop())
	cache := NewCache()
	in := []models.Place{{ID: "p4", Name: "Raigad Fort", Category: "attraction", Location: "Raigad"}}

	_, err := svc.Enrich(context.Background(), cache, in, defaults())
	require.NoError(t, err)
	res, err := svc.Enrich(context.Background(), cache, in, defaults())
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, 1, lookup.calls())

	cache.Reset()
	_, err = svc.Enrich(context.Background(), cache, in, defaults())
	require.NoError(t, err)
	assert.Equal(t, 2, lookup.calls())
}

func TestEnrichIsolatesSingleFailure(t *testing.T) {
	lookup := &fakeLookup{fail: map[string]bool{"Ajanta Caves Aurangabad Maharashtra India": true}}
	svc := NewService(lookup, nil, defaults(), zap.NewNop())

	res, err := svc.Enrich(context.Background(), nil, batch(), defaults())
	require.NoError(t, err)
	assert.Len(t, res.Places, 4)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, res.Failed)
	assert.Nil(t, res.Places[2].Wikimedia)
	assert.Equal(t, "https://own/ajanta.jpg", res.Places[2].ImageURL)
}

func TestRefreshKeepsImageURLAndReplacesWikimedia(t *testing.T) {
	svc := NewService(&fakeLookup{}, nil, defaults(), zap.NewNop())
	old := &models.WikimediaInfo{ThumbnailURL: "https://old/thumb", AttributionURL: "https://old", License: "CC0"}
	in := []models.Place{{ID: "p1", Name: "Gateway of India", Category: "monument", Location: "Mumbai",
		ImageURL: "https://own/gateway.jpg", Wikimedia: old}}

	opts := defaults()
	opts.Refresh = true
	res, err := svc.Enrich(context.Background(), nil, in, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, "https://own/gateway.jpg", res.Places[0].ImageURL)
	assert.Equal(t, "CC BY-SA 4.0", res.Places[0].Wikimedia.License)
	assert.Equal(t, "CC0", in[0].Wikimedia.License)
}

func TestEnrichPersistsThroughStore(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	for _, p := range batch() {
		p := p
		require.NoError(t, s.Places.Create(ctx, &p))
	}
	places, err := s.Places.List(ctx, nil)
	require.NoError(t, err)

	svc := NewService(&fakeLookup{}, StorePersister{Places: s.Places}, defaults(), zap.NewNop())
	opts := defaults()
	opts.Persist = true
	res, err := svc.Enrich(ctx, nil, places, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Updated)
	assert.Zero(t, res.PersistFailed)

	for _, p := range places {
		got, err := s.Places.Get(ctx, p.ID)
		require.NoError(t, err)
		if p.Category == "hotel" {
			assert.Nil(t, got.Wikimedia)
			continue
		}
		require.NotNil(t, got.Wikimedia, p.Name)
		assert.NotEmpty(t, got.ImageURL)
	}
}

func TestPersistFailureDoesNotRollBack(t *testing.T) {
	persister := &failingPersister{}
	svc := NewService(&fakeLookup{}, persister, defaults(), zap.NewNop())
	opts := defaults()
	opts.Workers = 1
	opts.Persist = true

	res, err := svc.Enrich(context.Background(), nil, batch(), opts)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Updated)
	assert.Equal(t, 3, res.PersistFailed)
	assert.Equal(t, 3, persister.calls)
	assert.NotNil(t, res.Places[0].Wikimedia)
}

func TestEnrichStopsAtBatchDeadline(t *testing.T) {
	lookup := &fakeLookup{block: true}
	svc := NewService(lookup, nil, defaults(), zap.NewNop())
	cache := NewCache()
	opts := Options{Workers: 2, ItemTimeout: time.Minute, BatchTimeout: 50 * time.Millisecond}

	start := time.Now()
	res, err := svc.Enrich(context.Background(), cache, batch(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Len(t, res.Places, 4)
	assert.Zero(t, res.Updated)

	// an interrupted pass is not remembered
	lookup.block = false
	res, err = svc.Enrich(context.Background(), cache, batch(), defaults())
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 3, res.Updated)
}

func TestEnrichHonoursItemTimeout(t *testing.T) {
	lookup := &fakeLookup{block: true}
	svc := NewService(lookup, nil, defaults(), zap.NewNop())
	opts := Options{Workers: 4, ItemTimeout: 20 * time.Millisecond, BatchTimeout: 5 * time.Second}

	res, err := svc.Enrich(context.Background(), nil, batch(), opts)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Failed)
	assert.Zero(t, res.Updated)
}

func TestEnrichCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lookup := &fakeLookup{}
	svc := NewService(lookup, nil, defaults(), zap.NewNop())
	_, err := svc.Enrich(ctx, nil, batch(), defaults())
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, lookup.calls())
}

func TestCacheIsSafeForConcurrentCallers(t *testing.T) {
	svc := NewService(&fakeLookup{}, nil, defaults(), zap.NewNop())
	cache := NewCache()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Enrich(context.Background(), cache, batch(), defaults())
			assert.NoError(t, err)
			assert.Len(t, res.Places, 4)
		}()
	}
	wg.Wait()
}

func TestRefreshBypassesLookupMemo(t *testing.T) {
	upstream := &fakeLookup{}
	memo := &wikimedia.CachedLookup{Next: upstream, Cache: rdx.NewMemory(), TTL: time.Hour, Log: zap.NewNop()}
	svc := NewService(memo, nil, defaults(), zap.NewNop())
	in := []models.Place{{ID: "p1", Name: "Gateway of India", Category: "monument", Location: "Mumbai"}}

	first, err := svc.Enrich(context.Background(), nil, in, defaults())
	require.NoError(t, err)
	require.Equal(t, 1, upstream.calls())

	opts := defaults()
	opts.Refresh = true
	res, err := svc.Enrich(context.Background(), nil, first.Places, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 2, upstream.calls())

	// an ordinary pass is answered by the refreshed memo entry
	_, err = svc.Enrich(context.Background(), nil, in, defaults())
	require.NoError(t, err)
	assert.Equal(t, 2, upstream.calls())
}
