package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/cespare/xxhash/v2"
)

// Site-specific extraction constants
const (
	seoulToken          = "서울"
	addressLabel        = "주소"
	descriptionMaxLen   = 500
	descriptionEllipsis = "..."
)

// Seoul bounding box for coordinate validation
const (
	seoulMinLat = 37.0
	seoulMaxLat = 38.0
	seoulMinLng = 126.5
	seoulMaxLng = 127.5
)

var (
	placeIDExact   = regexp.MustCompile(`^KOP\d+$`)
	placeIDPattern = regexp.MustCompile(`KOP\d+`)
)

// extractorFunc probes one rendered document for a candidate value.
// Returning "" means "no candidate"; a missing selector is never an error.
type extractorFunc func(doc *goquery.Document) string

// firstValid evaluates a fallback chain in order and returns the first
// candidate accepted by the validity predicate.
func firstValid(doc *goquery.Document, chain []extractorFunc, valid func(string) bool) (string, bool) {
	for _, extract := range chain {
		candidate := collapseSpace(extract(doc))
		if candidate != "" && valid(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func selectorText(selector string) extractorFunc {
	return func(doc *goquery.Document) string {
		return doc.Find(selector).First().Text()
	}
}

// Description selectors, most specific markup shape first
var descriptionChain = []extractorFunc{
	selectorText("div.cont-wrap div.cont-text"),
	selectorText("div.view-cont .txt-area"),
	selectorText("#detail-info .description"),
	selectorText("div.article-body"),
}

// ExtractDescription pulls the place description from a detail page. The
// selector chain wins when a candidate is long enough to be a real
// description; otherwise any sufficiently long paragraph in the main content
// region is accepted. Chain failure returns the caller-supplied fallback.
func ExtractDescription(doc *goquery.Document, fallback string) string {
	if candidate, ok := firstValid(doc, descriptionChain, func(s string) bool {
		return utf8.RuneCountInString(s) > 50
	}); ok {
		return TruncateDescription(candidate)
	}

	var paragraph string
	doc.Find("#content p, main p, div.content-area p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := collapseSpace(s.Text())
		if utf8.RuneCountInString(text) > 100 {
			paragraph = text
			return false
		}
		return true
	})
	if paragraph != "" {
		return TruncateDescription(paragraph)
	}

	return fallback
}

// Address label/value markup shapes, in probe order. An empty value selector
// means the value shares the label's parent element.
var addressPairSelectors = []struct {
	label string
	value string
}{
	{"dl dt", "dd"},
	{"table th", "td"},
	{"ul.info-list li strong", ""},
}

// ExtractAddress pulls the street address from a detail page. Candidates must
// mention Seoul; the ultimate fallback is an empty string.
func ExtractAddress(doc *goquery.Document) string {
	for _, pair := range addressPairSelectors {
		var found string
		doc.Find(pair.label).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if !strings.Contains(s.Text(), addressLabel) {
				return true
			}
			var candidate string
			if pair.value != "" {
				candidate = collapseSpace(s.NextFiltered(pair.value).Text())
			} else {
				parent := s.Parent().Clone()
				parent.Find("strong").Remove()
				candidate = collapseSpace(parent.Text())
			}
			if strings.Contains(candidate, seoulToken) {
				found = candidate
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	// Fallback scan: first element mentioning Seoul that is small enough to
	// be an address rather than a content block.
	var fallback string
	doc.Find("body *").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := collapseSpace(s.Text())
		if strings.Contains(text, seoulToken) && utf8.RuneCountInString(text) < 100 {
			fallback = text
			return false
		}
		return true
	})
	return fallback
}

// Ordered hints that the page embeds a map at all
var mapHintSelectors = []string{
	"#map, div.map-area, div.map-wrap",
	"[id*='map'], [class*='map']",
	"iframe[src*='map']",
	"img[src*='map']",
}

// Numeric-pair patterns probed against the full page markup, in order
var coordPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"lat"\s*:\s*"?(-?\d{1,3}\.\d+)"?\s*,\s*"lng"\s*:\s*"?(-?\d{1,3}\.\d+)"?`),
	regexp.MustCompile(`latitude["']?\s*[:=]\s*["']?(-?\d{1,3}\.\d+)["']?\s*,\s*["']?longitude["']?\s*[:=]\s*["']?(-?\d{1,3}\.\d+)`),
	regexp.MustCompile(`lat=(-?\d{1,3}\.\d+)&lo?ng?=(-?\d{1,3}\.\d+)`),
	regexp.MustCompile(`lat=(-?\d{1,3}\.\d+)&amp;lo?ng?=(-?\d{1,3}\.\d+)`),
}

var mapDomains = []string{"map.naver.com", "maps.google", "map.kakao.com"}

// ExtractCoordinates locates the place's coordinates. Stage 1 requires a
// map-bearing element; stage 2 scans the raw markup with the pattern list,
// discarding pairs outside the Seoul bounding box. Map iframes with q= or ll=
// parameters are the last resort. Returns nil when nothing validates.
func ExtractCoordinates(doc *goquery.Document, rawHTML string) *GeoPoint {
	if hasMapHint(doc) {
		for _, pattern := range coordPatterns {
			for _, m := range pattern.FindAllStringSubmatch(rawHTML, -1) {
				if pt := parseGeoPair(m[1], m[2]); pt != nil {
					return pt
				}
			}
		}
	}

	var pt *GeoPoint
	doc.Find("iframe[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		if !isMapDomain(src) {
			return true
		}
		if p := coordinateFromMapURL(src); p != nil {
			pt = p
			return false
		}
		return true
	})
	return pt
}

func hasMapHint(doc *goquery.Document) bool {
	for _, selector := range mapHintSelectors {
		if doc.Find(selector).Length() > 0 {
			return true
		}
	}
	return false
}

func isMapDomain(src string) bool {
	for _, domain := range mapDomains {
		if strings.Contains(src, domain) {
			return true
		}
	}
	return false
}

// coordinateFromMapURL extracts q=lat,lng or ll=lat,lng query parameters
func coordinateFromMapURL(src string) *GeoPoint {
	u, err := url.Parse(src)
	if err != nil {
		return nil
	}
	for _, key := range []string{"q", "ll"} {
		parts := strings.SplitN(u.Query().Get(key), ",", 2)
		if len(parts) != 2 {
			continue
		}
		if pt := parseGeoPair(parts[0], parts[1]); pt != nil {
			return pt
		}
	}
	return nil
}

// parseGeoPair parses a latitude/longitude pair and validates it against the
// Seoul bounding box. Out-of-box pairs are discarded, never partially kept.
func parseGeoPair(latStr, lngStr string) *GeoPoint {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return nil
	}
	if !inSeoulBounds(lat, lng) {
		return nil
	}
	return &GeoPoint{Latitude: lat, Longitude: lng}
}

func inSeoulBounds(lat, lng float64) bool {
	return lat >= seoulMinLat && lat <= seoulMaxLat &&
		lng >= seoulMinLng && lng <= seoulMaxLng
}

// ExtractPlaceID derives the stable identifier for a detail URL, in priority
// order: exact KOP-prefixed final path segment, first KOP pattern anywhere in
// the URL, an id query parameter, then the deterministic surrogate.
func ExtractPlaceID(rawURL string) string {
	base := strings.Split(rawURL, "?")[0]
	segs := strings.Split(strings.TrimRight(base, "/"), "/")
	if last := segs[len(segs)-1]; placeIDExact.MatchString(last) {
		return last
	}
	if m := placeIDPattern.FindString(rawURL); m != "" {
		return m
	}
	if u, err := url.Parse(rawURL); err == nil {
		if id := u.Query().Get("id"); id != "" {
			return id
		}
	}
	return SurrogateID(rawURL)
}

// SurrogateID builds the fallback identifier for URLs without a native place
// id. The hash is pinned on purpose (xxhash64 of the raw URL, 16 hex digits)
// so records stored under a surrogate keep matching across rewrites.
func SurrogateID(rawURL string) string {
	return fmt.Sprintf("PL%016x", xxhash.Sum64String(rawURL))
}

// TruncateDescription caps a description at 500 characters, replacing the
// tail with the ellipsis marker. Re-truncating its own output is a no-op.
func TruncateDescription(s string) string {
	if utf8.RuneCountInString(s) <= descriptionMaxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:descriptionMaxLen-len(descriptionEllipsis)]) + descriptionEllipsis
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
