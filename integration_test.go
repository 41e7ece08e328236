package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"sjsage522/placeworker/internal/scraper"
	"sjsage522/placeworker/services/cache"
	"sjsage522/placeworker/services/publisher"
	"sjsage522/placeworker/services/store"
	"sjsage522/placeworker/services/worker"

	"github.com/stretchr/testify/assert"
)

// stubSession serves canned pages instead of a live browser
type stubSession struct {
	pages    map[string]string
	released int
}

var _ scraper.Session = (*stubSession)(nil)

func (s *stubSession) HTML(_ context.Context, url string) (string, error) {
	if html, ok := s.pages[url]; ok {
		return html, nil
	}
	return "", fmt.Errorf("no such page: %s", url)
}

func (s *stubSession) Release() { s.released++ }

type stubFactory struct {
	pages    map[string]string
	sessions []*stubSession
}

var _ scraper.SessionFactory = (*stubFactory)(nil)

func (f *stubFactory) Acquire(_ context.Context) (scraper.Session, error) {
	s := &stubSession{pages: f.pages}
	f.sessions = append(f.sessions, s)
	return s, nil
}

type memStore struct {
	mu      sync.Mutex
	records map[string]scraper.PlaceRecord
}

var _ store.PlaceStore = (*memStore)(nil)

func (m *memStore) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.records)), nil
}

func (m *memStore) Save(_ context.Context, records []scraper.PlaceRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, rec := range records {
		if _, ok := m.records[rec.PlaceID]; !ok {
			inserted++
		}
		m.records[rec.PlaceID] = rec
	}
	return inserted, nil
}

func (m *memStore) Close() error { return nil }

type memPublisher struct {
	mu       sync.Mutex
	messages map[string][]byte
	trims    int
}

var _ publisher.Publisher = (*memPublisher)(nil)

func (m *memPublisher) Publish(key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[key] = message
	return nil
}

func (m *memPublisher) TrimStreams() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trims++
	return nil
}

func (m *memPublisher) Close() error { return nil }

type memCache struct {
	mu    sync.Mutex
	cache map[string][]byte
}

var _ cache.CacheService = (*memCache)(nil)

func (m *memCache) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, fmt.Errorf("cache miss")
}

func (m *memCache) Set(key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	return nil
}

func (m *memCache) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

// TestPipelineEndToEnd drives a full scrape-save-publish cycle over canned
// pages: listing with pagination, detail extraction, upsert and stream
// publication.
func TestPipelineEndToEnd(t *testing.T) {
	const base = "https://seoul.example.test"
	longDesc := "경복궁은 조선 왕조의 법궁으로 서울을 대표하는 고궁이다. 근정전과 경회루를 비롯한 전각들이 남아 있다."

	detail := func(desc, address string) string {
		return `<html><body>
			<div class="cont-wrap"><div class="cont-text">` + desc + `</div></div>
			<dl><dt>주소</dt><dd>` + address + `</dd></dl>
			<div id="map"></div>
			<script>var pos = {"lat": 37.5796, "lng": 126.9770};</script>
		</body></html>`
	}

	factory := &stubFactory{pages: map[string]string{
		base + "/attractions": `<html><body>
			<ul class="article-list">
				<li class="item"><a href="/attractions/KOP000001"><span class="title">경복궁</span></a><p>조선의 법궁</p></li>
			</ul>
			<div class="paging"><a>1</a><a>2</a></div>
		</body></html>`,
		base + "/attractions?curPage=2": `<html><body>
			<ul class="article-list">
				<li class="item"><a href="/attractions/KOP000002"><span class="title">덕수궁</span></a><p>대한제국의 황궁</p></li>
			</ul>
		</body></html>`,
		base + "/attractions/KOP000001": detail(longDesc, "서울특별시 종로구 사직로 161"),
		base + "/attractions/KOP000002": detail(longDesc, "서울특별시 중구 세종대로 99"),
	}}

	strategy := scraper.NewPlaceStrategy(base)
	runner := scraper.NewScraperWithPolicy(factory, strategy, 2, time.Millisecond)

	st := &memStore{records: make(map[string]scraper.PlaceRecord)}
	pub := &memPublisher{messages: make(map[string][]byte)}
	gate := &memCache{cache: make(map[string][]byte)}

	w := worker.NewWorker(context.Background(), runner, st, pub, gate, time.Hour, time.Minute)
	report := <-w.RunScrape()

	assert.Equal(t, scraper.StatusSucceeded, report.Status)
	assert.Equal(t, 2, report.Scraped)
	assert.Equal(t, 2, report.NewRecords)
	assert.Equal(t, 1, report.Attempts)

	// One session for the single attempt, released exactly once
	assert.Len(t, factory.sessions, 1)
	assert.Equal(t, 1, factory.sessions[0].released)

	// Stored records carry the full extraction
	stored := st.records["KOP000001"]
	assert.Equal(t, "경복궁", stored.Name)
	assert.Equal(t, "서울특별시 종로구 사직로 161", stored.Address)
	assert.NotNil(t, stored.Coordinate)
	assert.InDelta(t, 37.5796, stored.Coordinate.Latitude, 1e-9)

	// Published payloads round-trip as JSON
	var published scraper.PlaceRecord
	assert.NoError(t, json.Unmarshal(pub.messages["KOP000002"], &published))
	assert.Equal(t, "덕수궁", published.Name)
	assert.Equal(t, 1, pub.trims)

	// A second cycle upserts rather than duplicating
	second := <-w.RunScrape()
	assert.Equal(t, 0, second.NewRecords)
	count, err := st.Count(context.Background())
	assert.NoError(t, err)
	assert.EqualValues(t, 2, count)
}
