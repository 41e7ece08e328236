package scraper

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/placeworker/helpers"
	"sjsage522/placeworker/logger"
	"sjsage522/placeworker/pkg/errors"
)

// Category is one site section to crawl
type Category struct {
	Name string
	Path string
}

// Categories returns the site sections in crawl order
func Categories() []Category {
	return []Category{
		{Name: "명소", Path: "/attractions"},
		{Name: "자연", Path: "/nature"},
		{Name: "쇼핑", Path: "/shopping"},
		{Name: "엔터테인먼트", Path: "/entertainment"},
	}
}

// staticFetchFunc fetches a page without the browser; replaceable in tests
type staticFetchFunc func(url string) (io.Reader, error)

// PlaceStrategy walks category listings and assembles place records from
// their detail pages.
type PlaceStrategy struct {
	baseURL     string
	staticFetch staticFetchFunc
	log         *logger.Logger
}

var _ Strategy = (*PlaceStrategy)(nil)

// NewPlaceStrategy creates a strategy rooted at the given base URL
func NewPlaceStrategy(baseURL string) *PlaceStrategy {
	return &PlaceStrategy{
		baseURL:     strings.TrimRight(baseURL, "/"),
		staticFetch: helpers.FetchWithRandomHeaders,
		log:         logger.ForStrategy(),
	}
}

// Execute runs every category in declared order and concatenates results.
// A failing category must not abort the remaining ones.
func (st *PlaceStrategy) Execute(ctx context.Context, s Session) ([]PlaceRecord, error) {
	var records []PlaceRecord
	for _, cat := range Categories() {
		recs, err := st.processCategory(ctx, s, cat)
		if err != nil {
			st.log.Warn().Err(err).Str("category", cat.Name).Msg("Category failed")
			continue
		}
		records = append(records, recs...)
	}
	return records, nil
}

// processCategory navigates to the category, determines the listing page
// count, and walks every page. One page failing must not drop the rest.
func (st *PlaceStrategy) processCategory(ctx context.Context, s Session, cat Category) ([]PlaceRecord, error) {
	html, err := s.HTML(ctx, st.baseURL+cat.Path)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(html)
	if err != nil {
		return nil, errors.NewParsing(cat.Path, "카테고리 페이지 파싱 오류", err)
	}

	total := totalPages(doc)
	st.log.Info().Str("category", cat.Name).Int("pages", total).Msg("Processing category")

	var out []PlaceRecord
	for page := 1; page <= total; page++ {
		pageDoc := doc
		if page > 1 {
			pageHTML, err := s.HTML(ctx, st.pageURL(cat.Path, page))
			if err != nil {
				st.log.Warn().Err(err).Str("category", cat.Name).Int("page", page).Msg("Listing page failed")
				continue
			}
			pageDoc, err = parseDocument(pageHTML)
			if err != nil {
				st.log.Warn().Err(err).Str("category", cat.Name).Int("page", page).Msg("Listing page parse failed")
				continue
			}
		}
		out = append(out, st.processListingPage(ctx, s, pageDoc, page, total)...)
	}
	return out, nil
}

// processListingPage opens the detail page of every item on one listing
// page. Items are independent; one failure never drops its neighbors.
func (st *PlaceStrategy) processListingPage(ctx context.Context, s Session, doc *goquery.Document, pageNum, total int) []PlaceRecord {
	items := st.listingItems(doc)
	st.log.Debug().Int("page", pageNum).Int("total_pages", total).Int("items", len(items)).Msg("Listing page")

	var out []PlaceRecord
	for _, item := range items {
		rec, err := st.processDetailPage(ctx, s, item)
		if err != nil {
			st.log.Warn().Err(err).Str("url", item.Link).Msg("Detail page failed")
			continue
		}
		out = append(out, rec)
	}
	return out
}

// processDetailPage renders one detail page and assembles the record through
// the field extractor chains, falling back to the listing's short description
// when detail extraction yields nothing.
func (st *PlaceStrategy) processDetailPage(ctx context.Context, s Session, item listingItem) (PlaceRecord, error) {
	html, err := s.HTML(ctx, item.Link)
	if err != nil {
		// Static fallback keeps one flaky navigation from dropping the item
		reader, ferr := st.staticFetch(item.Link)
		if ferr != nil {
			return PlaceRecord{}, err
		}
		raw, rerr := io.ReadAll(reader)
		if rerr != nil {
			return PlaceRecord{}, err
		}
		html = string(raw)
		st.log.Debug().Str("url", item.Link).Msg("Used static fallback fetch")
	}

	doc, err := parseDocument(html)
	if err != nil {
		return PlaceRecord{}, errors.NewParsing(item.Link, "상세 페이지 파싱 오류", err)
	}

	return PlaceRecord{
		PlaceID:     ExtractPlaceID(item.Link),
		Name:        item.Name,
		Description: TruncateDescription(ExtractDescription(doc, item.ShortDesc)),
		Address:     ExtractAddress(doc),
		Coordinate:  ExtractCoordinates(doc, html),
		SourceURL:   item.Link,
	}, nil
}

// listingItem is one raw candidate pulled from a listing page
type listingItem struct {
	Name      string
	ShortDesc string
	Link      string
}

// Listing container shapes, most specific first
var listingItemSelectors = []string{
	"ul.article-list li.item",
	"ul.item-list > li",
	"div.list-wrap li",
}

func (st *PlaceStrategy) listingItems(doc *goquery.Document) []listingItem {
	for _, selector := range listingItemSelectors {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		if items := st.itemsFromSelection(sel); len(items) > 0 {
			return items
		}
	}

	// Generic fallback: any anchor that links to a place detail page
	var items []listingItem
	seen := make(map[string]struct{})
	doc.Find("a[href*='KOP']").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		link := st.resolveURL(strings.TrimSpace(href))
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		name := collapseSpace(a.AttrOr("aria-label", ""))
		if name == "" {
			name = collapseSpace(a.Text())
		}
		items = append(items, listingItem{Name: name, Link: link})
	})
	return items
}

func (st *PlaceStrategy) itemsFromSelection(sel *goquery.Selection) []listingItem {
	var items []listingItem
	sel.Each(func(_ int, s *goquery.Selection) {
		a := s.Find("a[href]").First()
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		name := collapseSpace(s.Find(".title").First().Text())
		if name == "" {
			name = collapseSpace(a.AttrOr("aria-label", ""))
		}
		if name == "" {
			name = collapseSpace(a.Text())
		}
		items = append(items, listingItem{
			Name:      name,
			ShortDesc: collapseSpace(s.Find(".small-text, .desc, p").First().Text()),
			Link:      st.resolveURL(strings.TrimSpace(href)),
		})
	})
	return items
}

func (st *PlaceStrategy) resolveURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return st.baseURL + href
}

func (st *PlaceStrategy) pageURL(path string, page int) string {
	return fmt.Sprintf("%s%s?curPage=%d", st.baseURL, path, page)
}

func parseDocument(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// totalPages reads the pagination bar; the largest numeric anchor wins
func totalPages(doc *goquery.Document) int {
	total := 1
	doc.Find("div.paging a, ul.pagination a").Each(func(_ int, a *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(a.Text())); err == nil && n > total {
			total = n
		}
	})
	return total
}
