// Package ingest turns RSS/Atom feed items into numbered report sources.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"

	"github.com/HassDhia/deep-agent-sti/internal/config"
	"github.com/HassDhia/deep-agent-sti/internal/report"
)

const maxTitleLen = 200

type Fetcher interface {
	Fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error)
}

type RSSFetcher struct {
	parser *gofeed.Parser
}

func NewRSSFetcher() *RSSFetcher {
	return &RSSFetcher{parser: gofeed.NewParser()}
}

func (f *RSSFetcher) Fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", feedURL, err)
	}
	return feed, nil
}

// Result holds converted sources and how many items were rejected.
type Result struct {
	Sources  []report.Source
	Rejected int
}

// FetchSources fetches one feed and numbers its items from firstID.
func FetchSources(ctx context.Context, f Fetcher, feedURL string, firstID int) (Result, error) {
	feed, err := f.Fetch(ctx, feedURL)
	if err != nil {
		return Result{}, err
	}
	return Convert(feed, firstID), nil
}

// Convert maps feed items to sources. Items without a link or a publish
// date are rejected, since an undated source cannot be checked against a
// coverage window.
func Convert(feed *gofeed.Feed, firstID int) Result {
	if firstID < 1 {
		firstID = 1
	}
	var res Result
	id := firstID
	for _, item := range feed.Items {
		var pub *time.Time
		if item.PublishedParsed != nil {
			pub = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			pub = item.UpdatedParsed
		}
		if pub == nil || strings.TrimSpace(item.Link) == "" {
			res.Rejected++
			continue
		}

		res.Sources = append(res.Sources, report.Source{
			ID:            id,
			Title:         truncate(stripHTML(item.Title), maxTitleLen),
			URL:           strings.TrimSpace(item.Link),
			Publisher:     strings.TrimSpace(feed.Title),
			PublishedDate: pub.UTC().Format(time.DateOnly),
		})
		id++
	}
	return res
}

type FetchResult struct {
	Sources []report.Source
	Errors  []error
}

// FetchAll fetches every feed concurrently and numbers the combined
// sources in feed order from firstID.
func FetchAll(ctx context.Context, f Fetcher, feeds []config.Feed, firstID int) FetchResult {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		result  FetchResult
		perFeed = make([][]report.Source, len(feeds))
	)

	for i, fd := range feeds {
		wg.Add(1)
		go func(i int, fd config.Feed) {
			defer wg.Done()
			res, err := FetchSources(ctx, f, fd.URL, 1)
			if err != nil {
				mu.Lock()
				result.Errors = append(result.Errors, fmt.Errorf("%s: %w", fd.Name, err))
				mu.Unlock()
				return
			}
			perFeed[i] = res.Sources
		}(i, fd)
	}
	wg.Wait()

	id := firstID
	if id < 1 {
		id = 1
	}
	for _, srcs := range perFeed {
		for _, s := range srcs {
			s.ID = id
			result.Sources = append(result.Sources, s)
			id++
		}
	}
	return result
}

// ToYAML renders sources as a bundle "sources:" block.
func ToYAML(sources []report.Source) ([]byte, error) {
	out, err := yaml.Marshal(struct {
		Sources []report.Source `yaml:"sources"`
	}{sources})
	if err != nil {
		return nil, fmt.Errorf("encoding sources: %w", err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
