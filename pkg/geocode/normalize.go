package geocode

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/carpark-cli/internal/geo"
)

// MaxQueryLength caps a sanitized search query, in runes.
const MaxQueryLength = 100

// KeyPrefix namespaces geocoding entries in the application cache.
const KeyPrefix = "geocode:"

// QueryKind tags a query for caching.
type QueryKind string

const (
	QueryPostal QueryKind = "postal"
	QuerySearch QueryKind = "search"
)

// RawResult is one search hit as the geocoding service returns it.
// Coordinates arrive as strings.
type RawResult struct {
	SearchVal string `json:"SEARCHVAL"`
	BlockNo   string `json:"BLK_NO"`
	RoadName  string `json:"ROAD_NAME"`
	Building  string `json:"BUILDING"`
	Address   string `json:"ADDRESS"`
	Postal    string `json:"POSTAL"`
	X         string `json:"X"`
	Y         string `json:"Y"`
	Latitude  string `json:"LATITUDE"`
	Longitude string `json:"LONGITUDE"`
}

// GeocodingResult is a validated location inside the service region.
type GeocodingResult struct {
	Lat        float64 `json:"lat" yaml:"lat"`
	Lng        float64 `json:"lng" yaml:"lng"`
	Address    string  `json:"address" yaml:"address"`
	PostalCode string  `json:"postal_code" yaml:"postal_code"`
	Building   string  `json:"building,omitempty" yaml:"building,omitempty"`
	Road       string  `json:"road,omitempty" yaml:"road,omitempty"`
}

// Normalize converts a raw hit into a GeocodingResult. It reports false when
// the coordinates do not parse or fall outside the region; a result is never
// partially accepted.
func Normalize(raw RawResult) (*GeocodingResult, bool) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(raw.Latitude), 64)
	if err != nil {
		return nil, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(raw.Longitude), 64)
	if err != nil {
		return nil, false
	}
	if math.IsNaN(lat) || math.IsNaN(lng) || !geo.Singapore.Contains(lat, lng) {
		return nil, false
	}

	address := clean(raw.Address)
	if address == "" {
		address = clean(raw.SearchVal)
	}
	return &GeocodingResult{
		Lat:        lat,
		Lng:        lng,
		Address:    address,
		PostalCode: clean(raw.Postal),
		Building:   clean(raw.Building),
		Road:       clean(raw.RoadName),
	}, true
}

// clean trims a field and maps the service's "NIL" placeholder to empty.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "NIL") {
		return ""
	}
	return s
}

// IsPostalCode reports whether q is a six-digit postal code once non-digits
// are stripped. Codes below 010000 do not exist and are rejected.
func IsPostalCode(q string) bool {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, q)
	if len(digits) != 6 {
		return false
	}
	n, err := strconv.Atoi(digits)
	return err == nil && n >= 10000
}

// KindOf classifies a query for caching.
func KindOf(q string) QueryKind {
	if IsPostalCode(q) {
		return QueryPostal
	}
	return QuerySearch
}

const unsafeChars = `<>"'%;(){}\`

// SanitizeQuery prepares free text for embedding in a request.
func SanitizeQuery(q string) string {
	q = norm.NFKC.String(q)
	q = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		if strings.ContainsRune(unsafeChars, r) {
			return -1
		}
		return r
	}, q)
	q = strings.Join(strings.Fields(q), " ")

	if runes := []rune(q); len(runes) > MaxQueryLength {
		q = strings.TrimSpace(string(runes[:MaxQueryLength]))
	}
	return q
}

// CacheKey builds the application cache key for a query.
func CacheKey(query string, kind QueryKind) string {
	return KeyPrefix + entryKey(query, kind)
}

func entryKey(query string, kind QueryKind) string {
	return string(kind) + ":" + strings.ToLower(strings.TrimSpace(query))
}
