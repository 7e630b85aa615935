package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lysyi3m/threat-comb/app/fetch"
)

type Mode string

const (
	ModeAny       Mode = "ANY"
	ModeLatestN   Mode = "LATEST_N"
	ModeOnDate    Mode = "ON_DATE"
	ModeDateRange Mode = "DATE_RANGE"
)

// ParseMode upper-cases s. An empty string means ModeAny.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case "":
		return ModeAny, nil
	case ModeAny, ModeLatestN, ModeOnDate, ModeDateRange:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, s)
}

// DatePrefetch reports whether the mode filters on publish dates and
// therefore needs dates sniffed for undated candidates.
func (m Mode) DatePrefetch() bool {
	return m == ModeOnDate || m == ModeDateRange
}

func (m Mode) sorted() bool {
	return m == ModeLatestN || m.DatePrefetch()
}

var ErrInvalidRequest = errors.New("invalid discovery request")

// Request is a discovery order for one source. Dates are UTC calendar days;
// the zero time means unset.
type Request struct {
	Mode               Mode
	Limit              int
	OnDate             time.Time
	DateFrom           time.Time
	DateTo             time.Time
	PrefetchMultiplier int
	AllowUnknownURLs   bool
}

// Validate rejects incomplete date constraints before anything is fetched.
func (r Request) Validate() error {
	if _, err := ParseMode(string(r.Mode)); err != nil {
		return err
	}
	switch r.mode() {
	case ModeOnDate:
		if r.OnDate.IsZero() {
			return fmt.Errorf("%w: ON_DATE requires a date", ErrInvalidRequest)
		}
	case ModeDateRange:
		if r.DateFrom.IsZero() && r.DateTo.IsZero() {
			return fmt.Errorf("%w: DATE_RANGE requires at least one bound", ErrInvalidRequest)
		}
		if !r.DateFrom.IsZero() && !r.DateTo.IsZero() && r.DateFrom.After(r.DateTo) {
			return fmt.Errorf("%w: date range start is after its end", ErrInvalidRequest)
		}
	}
	return nil
}

func (r Request) mode() Mode {
	m, err := ParseMode(string(r.Mode))
	if err != nil {
		return ModeAny
	}
	return m
}

func (r Request) target() int {
	return max(r.Limit, 1)
}

// maxCandidates is how many items an endpoint may yield before filtering.
func (r Request) maxCandidates() int {
	target := r.target()
	return max(target*max(r.PrefetchMultiplier, 1), target)
}

// Fetcher is the subset of fetch.Client discovery needs.
type Fetcher interface {
	Get(ctx context.Context, target string, expect fetch.Expect) *fetch.Result
}

// DateCache remembers sniffed publish dates across runs. found is true for a
// cached miss as well.
type DateCache interface {
	GetPublishedAt(ctx context.Context, articleURL string) (date string, found bool, err error)
	SetPublishedAt(ctx context.Context, articleURL, date string) error
}

// item is a candidate before it becomes an article.
type item struct {
	URL         string
	Title       string
	Author      string
	Summary     string
	PublishedAt string
	FromFeed    bool
}
