package sproutbook

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultBaseURL is the production Sproutbook app host
	DefaultBaseURL = "https://app.getsproutbook.com"

	// EnrollmentsEndpoint lists the children on a parent account
	EnrollmentsEndpoint = "/api/v1/enrollments"

	// NotesEndpoint is the paginated note feed for one enrollment
	NotesEndpoint = "/api/v1/notes"

	// MediaEndpoint serves stored media addressed by key
	MediaEndpoint = "/api/v1/media"

	// DefaultPageSize is the number of notes requested per page
	DefaultPageSize = 100

	// MaxPageSize is the largest page the service will serve
	MaxPageSize = 500
)

// EnrollmentsURL constructs the URL listing the enrollments on an account
func EnrollmentsURL(baseURL, accountID string) string {
	if accountID == "" {
		return baseURL + EnrollmentsEndpoint
	}
	params := url.Values{}
	params.Set("account", accountID)
	return fmt.Sprintf("%s%s?%s", baseURL, EnrollmentsEndpoint, params.Encode())
}

// NotesURL constructs one page request: before is the exclusive
// upper-bound cursor wall clock, count the page size, categories the
// record kinds to include.
func NotesURL(baseURL, enrollmentID, before string, count int, categories []string) string {
	if count <= 0 {
		count = DefaultPageSize
	} else if count > MaxPageSize {
		count = MaxPageSize
	}

	params := url.Values{}
	params.Set("enrollment", enrollmentID)
	params.Set("before", before)
	params.Set("count", strconv.Itoa(count))
	if len(categories) > 0 {
		params.Set("categories", strings.Join(categories, ","))
	}

	return fmt.Sprintf("%s%s?%s", baseURL, NotesEndpoint, params.Encode())
}
