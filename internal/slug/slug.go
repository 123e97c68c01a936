package slug

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dshills/tripdesk-mcp/internal/normalize"
	"github.com/dshills/tripdesk-mcp/pkg/types"
)

// Fallback is used when no attribute yields a usable part
const Fallback = "trip"

const maxLength = 80

var validPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Attributes are the trip properties a slug is derived from
type Attributes struct {
	ClientName         string `json:"client_name,omitempty"`
	ClientEmail        string `json:"client_email,omitempty"`
	PrimaryDestination string `json:"primary_destination,omitempty"`
	Year               int    `json:"year,omitempty"`
}

// AttributesOf extracts slug attributes from a trip
func AttributesOf(trip *types.Trip) Attributes {
	attrs := Attributes{
		PrimaryDestination: trip.PrimaryDestination(),
		Year:               trip.Year(),
	}
	if c, ok := trip.PrimaryClient(); ok {
		attrs.ClientName = c.ClientName
		attrs.ClientEmail = c.ClientEmail
	}
	return attrs
}

// Generate builds {client-or-email-prefix}-{primary-destination}-{year}.
// Empty parts are dropped; if nothing remains the result is Fallback.
func Generate(attrs Attributes) string {
	parts := make([]string, 0, 3)

	if client := clientPart(attrs); client != "" {
		parts = append(parts, client)
	}
	if dest := Slugify(attrs.PrimaryDestination); dest != "" {
		parts = append(parts, dest)
	}
	if attrs.Year > 0 {
		parts = append(parts, strconv.Itoa(attrs.Year))
	}
	if len(parts) == 0 {
		return Fallback
	}
	return truncate(strings.Join(parts, "-"))
}

// clientPart is the first name of the client, or the email local part
func clientPart(attrs Attributes) string {
	for _, field := range strings.Fields(attrs.ClientName) {
		if s := Slugify(field); s != "" {
			return s
		}
	}
	if attrs.ClientEmail != "" {
		return Slugify(types.EmailLocalPart(types.NormalizeEmail(attrs.ClientEmail)))
	}
	return ""
}

// Slugify lowercases and ASCII-folds s and joins its alphanumeric runs
// with single hyphens
func Slugify(s string) string {
	folded := normalize.Fold(s)
	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range folded {
		switch {
		case r == '\'':
			// "sara's" -> "saras", not "sara-s"
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
	}
	return b.String()
}

// Valid reports whether s is a well-formed slug
func Valid(s string) bool {
	return len(s) <= maxLength && validPattern.MatchString(s)
}

// WithSuffix returns base-n, shortening base so the result stays within
// the slug length limit
func WithSuffix(base string, n int) string {
	suffix := "-" + strconv.Itoa(n)
	if len(base)+len(suffix) > maxLength {
		base = strings.TrimRight(base[:maxLength-len(suffix)], "-")
	}
	return base + suffix
}

// Candidates lists slug renderings of a raw query to try against the
// registry, most literal first
func Candidates(raw string, query normalize.Result) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 3)
	add := func(s string) {
		if !Valid(s) {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	add(strings.ToLower(strings.TrimSpace(raw)))
	add(query.Slug())
	add(Slugify(raw))
	return out
}

func truncate(s string) string {
	if len(s) <= maxLength {
		return s
	}
	return strings.TrimRight(s[:maxLength], "-")
}
