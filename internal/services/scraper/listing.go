package scraper

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/browser"
)

// answerLinkSelector matches the permalink anchor on each listing entry
const answerLinkSelector = "a.answer_timestamp"

// ListingExtractor walks a profile's answer listing, scrolling until the feed
// stops growing or the time budget runs out, and yields every unique answer
// permalink in discovery order.
type ListingExtractor struct {
	session *browser.Session
	config  common.CollectConfig
	events  interfaces.EventService
	logger  arbor.ILogger
}

// NewListingExtractor creates a listing extractor bound to one session
func NewListingExtractor(session *browser.Session, config common.CollectConfig, events interfaces.EventService, logger arbor.ILogger) *ListingExtractor {
	return &ListingExtractor{
		session: session,
		config:  config,
		events:  events,
		logger:  logger,
	}
}

// Collect loads listingURL and returns all answer permalinks found before the
// feed stagnated. Links are absolute and deduplicated, preserving the order
// they first appeared.
func (e *ListingExtractor) Collect(ctx context.Context, listingURL string) ([]string, error) {
	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listing url %q: %w", listingURL, err)
	}

	if err := e.session.Navigate(ctx, listingURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNavigation, err)
	}

	if !e.session.IsAuthenticated(ctx) {
		return nil, fmt.Errorf("%w: listing page %s", ErrAuthLost, listingURL)
	}

	started := time.Now()
	seen := make(map[string]struct{})
	links := make([]string, 0)
	stagnant := 0
	lastHeight := int64(0)

	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return links, err
		}
		if time.Since(started) >= e.config.TimeBudget {
			e.logger.Info().
				Int("links", len(links)).
				Dur("elapsed", time.Since(started)).
				Msg("Collection time budget reached")
			break
		}

		newLinks, err := e.harvestLinks(ctx, base, seen, &links)
		if err != nil {
			return links, fmt.Errorf("%w: %v", ErrNavigation, err)
		}

		height, err := e.session.PageHeight(ctx)
		if err != nil {
			return links, fmt.Errorf("%w: %v", ErrNavigation, err)
		}

		if newLinks == 0 && height == lastHeight {
			stagnant++
			e.logger.Debug().
				Int("stagnant", stagnant).
				Int("limit", e.config.StagnationLimit).
				Msg("No new content after scroll")
		} else {
			stagnant = 0
		}
		lastHeight = height

		e.publishProgress(ctx, iteration, newLinks, len(links), time.Since(started))

		if stagnant >= e.config.StagnationLimit {
			e.logger.Info().
				Int("links", len(links)).
				Int("iterations", iteration).
				Msg("Listing feed exhausted")
			break
		}

		if err := e.session.ScrollToBottom(ctx); err != nil {
			return links, fmt.Errorf("%w: %v", ErrNavigation, err)
		}
		if err := sleepCtx(ctx, e.config.ScrollPause); err != nil {
			return links, err
		}
	}

	return links, nil
}

// harvestLinks reads the currently rendered permalinks and appends unseen ones
func (e *ListingExtractor) harvestLinks(ctx context.Context, base *url.URL, seen map[string]struct{}, links *[]string) (int, error) {
	hrefs, err := e.session.AnchorHrefs(ctx, answerLinkSelector)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, href := range hrefs {
		absolute := resolveURL(base, href)
		if absolute == "" {
			continue
		}
		if _, ok := seen[absolute]; ok {
			continue
		}
		seen[absolute] = struct{}{}
		*links = append(*links, absolute)
		added++
	}
	return added, nil
}

func (e *ListingExtractor) publishProgress(ctx context.Context, iteration, newLinks, total int, elapsed time.Duration) {
	if e.events == nil {
		return
	}
	_ = e.events.Publish(ctx, interfaces.Event{
		Type: interfaces.EventCollectProgress,
		Payload: models.CollectProgress{
			Iteration:  iteration,
			NewLinks:   newLinks,
			TotalLinks: total,
			Elapsed:    elapsed,
		},
	})
}

// resolveURL makes href absolute against base, dropping fragments
func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved.String()
}

// sleepCtx waits for d unless ctx is cancelled first
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
