package scraper

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeSession serves canned pages and records every requested URL
type fakeSession struct {
	pages    map[string]string
	requests []string
	released int
}

var _ Session = (*fakeSession)(nil)

func (f *fakeSession) HTML(_ context.Context, url string) (string, error) {
	f.requests = append(f.requests, url)
	if html, ok := f.pages[url]; ok {
		return html, nil
	}
	return "", fmt.Errorf("no such page: %s", url)
}

func (f *fakeSession) Release() {
	f.released++
}

func offlineFetch(string) (io.Reader, error) {
	return nil, fmt.Errorf("offline")
}

const testBase = "https://seoul.example.test"

func detailHTML(desc, address string) string {
	return `<html><body>
		<div class="cont-wrap"><div class="cont-text">` + desc + `</div></div>
		<dl><dt>주소</dt><dd>` + address + `</dd></dl>
		<div id="map"></div>
		<script>var pos = {"lat": 37.5796, "lng": 126.9770};</script>
	</body></html>`
}

func newTestStrategy() *PlaceStrategy {
	st := NewPlaceStrategy(testBase)
	st.staticFetch = offlineFetch
	return st
}

func TestPlaceStrategyExecute(t *testing.T) {
	longDesc := "경복궁은 조선 왕조의 법궁으로 서울을 대표하는 고궁이다. 근정전과 경회루를 비롯한 전각들이 남아 있으며 사계절 내내 방문객이 끊이지 않는다."

	session := &fakeSession{pages: map[string]string{
		testBase + "/attractions": `<html><body>
			<ul class="article-list">
				<li class="item"><a href="/attractions/KOP000001"><span class="title">경복궁</span></a><p>조선의 법궁</p></li>
				<li class="item"><a href="/attractions/KOP000002"><span class="title">남산서울타워</span></a><p>서울의 전망대</p></li>
				<li class="item"><a href="/attractions/KOP000404"><span class="title">없는 곳</span></a></li>
			</ul>
			<div class="paging"><a>1</a><a>2</a></div>
		</body></html>`,
		testBase + "/attractions?curPage=2": `<html><body>
			<ul class="article-list">
				<li class="item"><a href="/attractions/KOP000003"><span class="title">덕수궁</span></a><p>대한제국의 황궁</p></li>
			</ul>
		</body></html>`,
		testBase + "/attractions/KOP000001": detailHTML(longDesc, "서울특별시 종로구 사직로 161"),
		testBase + "/attractions/KOP000002": detailHTML(longDesc, "서울특별시 용산구 남산공원길 105"),
		testBase + "/attractions/KOP000003": detailHTML(longDesc, "서울특별시 중구 세종대로 99"),
	}}

	records, err := newTestStrategy().Execute(context.Background(), session)
	assert.NoError(t, err)

	// The unreachable detail page is dropped; the remaining categories fail
	// to load without aborting the run.
	assert.Len(t, records, 3)

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.PlaceID)
	}
	assert.Equal(t, []string{"KOP000001", "KOP000002", "KOP000003"}, ids)

	first := records[0]
	assert.Equal(t, "경복궁", first.Name)
	assert.Contains(t, first.Description, "경복궁은 조선 왕조의 법궁")
	assert.Equal(t, "서울특별시 종로구 사직로 161", first.Address)
	assert.NotNil(t, first.Coordinate)
	assert.InDelta(t, 37.5796, first.Coordinate.Latitude, 1e-9)
	assert.Equal(t, testBase+"/attractions/KOP000001", first.SourceURL)
	assert.True(t, first.IsComplete())
}

func TestPlaceStrategyShortDescFallback(t *testing.T) {
	// A detail page with no usable description keeps the listing's short text
	session := &fakeSession{pages: map[string]string{
		testBase + "/attractions": `<html><body>
			<ul class="article-list">
				<li class="item"><a href="/attractions/KOP000010"><span class="title">어딘가</span></a><p>목록에 실린 짧은 소개</p></li>
			</ul>
		</body></html>`,
		testBase + "/attractions/KOP000010": `<html><body><div>본문 없음</div></body></html>`,
	}}

	records, err := newTestStrategy().Execute(context.Background(), session)
	assert.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, "목록에 실린 짧은 소개", records[0].Description)
	assert.Nil(t, records[0].Coordinate)
}

func TestListingItemsGenericFallback(t *testing.T) {
	// No known listing container; the anchor scan still finds detail links
	doc := mustDoc(t, `<html><body>
		<div class="weird-layout">
			<a href="/attractions/KOP000020">어떤 명소</a>
			<a href="/attractions/KOP000020">중복 링크</a>
			<a href="/about">소개</a>
		</div>
	</body></html>`)

	items := newTestStrategy().listingItems(doc)
	assert.Len(t, items, 1)
	assert.Equal(t, testBase+"/attractions/KOP000020", items[0].Link)
	assert.Equal(t, "어떤 명소", items[0].Name)
}

func TestTotalPages(t *testing.T) {
	doc := mustDoc(t, `<html><body><div class="paging"><a>이전</a><a>1</a><a>2</a><a>3</a><a>다음</a></div></body></html>`)
	assert.Equal(t, 3, totalPages(doc))

	doc = mustDoc(t, `<html><body></body></html>`)
	assert.Equal(t, 1, totalPages(doc))
}

func TestResolveURL(t *testing.T) {
	st := newTestStrategy()
	assert.Equal(t, testBase+"/attractions/KOP1", st.resolveURL("/attractions/KOP1"))
	assert.Equal(t, testBase+"/attractions/KOP1", st.resolveURL("attractions/KOP1"))
	assert.Equal(t, "https://other.example/x", st.resolveURL("https://other.example/x"))
}
