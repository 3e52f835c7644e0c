package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/services/browser"
)

// Selectors for the answer detail page and its revision log. These track the
// source site's generated class names and test hooks; the q-text style match
// distinguishes the answer body from quoted or collapsed content blocks.
const (
	questionTitleSelector = ".puppeteer_test_question_title"
	questionLinkSelector  = "a.puppeteer_test_link:has(.puppeteer_test_question_title)"
	titleTextSelector     = ".puppeteer_test_question_title span"
	answerBodySelector    = "div.q-text[style*='max-width: 100%'] span.q-box.qu-userSelect--text"
	revisionLinkSelector  = "a.puppeteer_test_link[href*='/log/revision/']"
	logTimestampSelector  = "span.c1h7helg.c8970ew"
)

// DetailExtractor visits one answer permalink at a time and assembles the
// complete record: question link and title, answer body as markdown, and the
// revision metadata from the permalink's log page.
type DetailExtractor struct {
	session   *browser.Session
	config    common.BrowserConfig
	converter *md.Converter
	logger    arbor.ILogger
}

// NewDetailExtractor creates a detail extractor bound to one session.
// baseDomain anchors relative links in converted markdown.
func NewDetailExtractor(session *browser.Session, config common.BrowserConfig, baseDomain string, logger arbor.ILogger) *DetailExtractor {
	return &DetailExtractor{
		session:   session,
		config:    config,
		converter: md.NewConverter(baseDomain, true, nil),
		logger:    logger,
	}
}

// Extract navigates to sourceURL and returns the full field set for the
// record. Title and body are critical: if either cannot be produced the
// extraction fails and nothing should be persisted. Revision fields are
// best-effort and may be empty.
func (e *DetailExtractor) Extract(ctx context.Context, sourceURL string) (models.AnswerFields, error) {
	var fields models.AnswerFields

	base, err := url.Parse(sourceURL)
	if err != nil {
		return fields, fmt.Errorf("invalid source url %q: %w", sourceURL, err)
	}

	if err := e.session.Navigate(ctx, sourceURL); err != nil {
		return fields, fmt.Errorf("%w: %v", ErrNavigation, err)
	}

	if !e.session.IsAuthenticated(ctx) {
		return fields, fmt.Errorf("%w: detail page %s", ErrAuthLost, sourceURL)
	}

	if !e.session.WaitVisible(ctx, questionTitleSelector, e.config.SelectorTimeout) {
		return fields, fmt.Errorf("%w: question title never rendered on %s", ErrCriticalFieldMissing, sourceURL)
	}

	fields.DetailURL = resolveURL(base, e.session.Attribute(ctx, questionLinkSelector, "href"))
	fields.TitleText = strings.TrimSpace(e.session.Text(ctx, titleTextSelector))

	bodyHTML := e.session.InnerHTML(ctx, answerBodySelector)
	if bodyHTML != "" {
		markdown, err := e.converter.ConvertString(bodyHTML)
		if err != nil {
			e.logger.Warn().Err(err).Str("source_url", sourceURL).Msg("Markdown conversion failed")
		} else {
			fields.BodyText = strings.TrimSpace(markdown)
		}
	}

	if fields.TitleText == "" || fields.BodyText == "" {
		return fields, fmt.Errorf("%w: title=%t body=%t on %s",
			ErrCriticalFieldMissing, fields.TitleText != "", fields.BodyText != "", sourceURL)
	}

	e.extractRevision(ctx, base, sourceURL, &fields)

	return fields, nil
}

// extractRevision reads the permalink's log page for the revision link and
// timestamp. Failures here degrade the record, never fail it.
func (e *DetailExtractor) extractRevision(ctx context.Context, base *url.URL, sourceURL string, fields *models.AnswerFields) {
	logURL := strings.TrimSuffix(sourceURL, "/") + "/log"
	if err := e.session.Navigate(ctx, logURL); err != nil {
		e.logger.Warn().Err(err).Str("log_url", logURL).Msg("Revision log unavailable")
		return
	}

	html, err := e.session.DocumentHTML(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Str("log_url", logURL).Msg("Revision log snapshot failed")
		return
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.logger.Warn().Err(err).Str("log_url", logURL).Msg("Revision log parse failed")
		return
	}

	if href, ok := doc.Find(revisionLinkSelector).First().Attr("href"); ok {
		fields.RevisionURL = resolveURL(base, href)
	}

	raw := strings.TrimSpace(doc.Find(logTimestampSelector).Last().Text())
	if raw == "" {
		return
	}
	fields.RawTimestamp = raw

	parsed, err := ParseTimestamp(raw)
	if err != nil {
		e.logger.Debug().Err(err).Str("raw", raw).Msg("Timestamp not in expected format, keeping raw only")
		return
	}
	fields.ParsedTimestamp = &parsed
}
