// Package slug derives URL-safe identifiers for city records.
package slug

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrSlugExhausted is returned when every counter up to MaxAttempts collides
var ErrSlugExhausted = errors.New("slug: no free slug found")

const defaultMaxAttempts = 10000

var (
	invalidChars = regexp.MustCompile(`[^\w\s-]`)
	separators   = regexp.MustCompile(`[-\s]+`)
)

// Fields are the values a slug template can reference. The display
// names fall back to the codes when empty.
type Fields struct {
	Name            string
	Province        string
	Country         string
	ProvinceDisplay string
	CountryDisplay  string
}

// Format holds the templates used to build a slug. Placeholders are
// {name}, {province}, {country}, {province_display}, {country_display}
// and {counter}.
type Format struct {
	Template        string
	CounterTemplate string
	MaxAttempts     int
}

// DefaultFormat renders "Toronto ON CA" as "toronto-on-ca", then
// "toronto-on-ca-1", "toronto-on-ca-2" on collision
var DefaultFormat = Format{
	Template:        "{name} {province} {country}",
	CounterTemplate: "{name} {province} {country} {counter}",
	MaxAttempts:     defaultMaxAttempts,
}

// ExistsFunc reports whether a slug is already taken by another record
type ExistsFunc func(ctx context.Context, slug string) (bool, error)

// Render fills the template for the given counter. Counter 0 means no counter.
func (f Format) Render(fields Fields, counter int) string {
	tmpl := f.Template
	if counter > 0 {
		tmpl = f.CounterTemplate
	}
	provinceDisplay := fields.ProvinceDisplay
	if provinceDisplay == "" {
		provinceDisplay = fields.Province
	}
	countryDisplay := fields.CountryDisplay
	if countryDisplay == "" {
		countryDisplay = fields.Country
	}
	r := strings.NewReplacer(
		"{name}", fields.Name,
		"{province_display}", provinceDisplay,
		"{country_display}", countryDisplay,
		"{province}", fields.Province,
		"{country}", fields.Country,
		"{counter}", strconv.Itoa(counter),
	)
	return r.Replace(tmpl)
}

// Generate returns the first free slug for fields. A candidate equal to
// current is accepted without a lookup, so re-saving a record keeps its slug.
func (f Format) Generate(ctx context.Context, fields Fields, current string, exists ExistsFunc) (string, error) {
	maxAttempts := f.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	for counter := 0; counter < maxAttempts; counter++ {
		candidate := Slugify(f.Render(fields, counter))
		if candidate == current {
			return candidate, nil
		}

		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w after %d attempts for %q", ErrSlugExhausted, maxAttempts, f.Render(fields, 0))
}

// CountryName returns the English name of an ISO 3166 country code,
// or "" when the code is unknown: "CA" -> "Canada"
func CountryName(code string) string {
	region, err := language.ParseRegion(strings.TrimSpace(code))
	if err != nil || !region.IsCountry() {
		return ""
	}
	return display.English.Regions().Name(region)
}

// ToASCII strips accents and drops anything outside ASCII: "Montréal" -> "Montreal"
func ToASCII(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slugify lowercases, transliterates and hyphenates s
func Slugify(s string) string {
	s = ToASCII(s)
	s = invalidChars.ReplaceAllString(strings.ToLower(s), "")
	s = separators.ReplaceAllString(s, "-")
	return strings.Trim(s, "-_")
}
