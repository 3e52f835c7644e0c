package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
)

// ErrConnection indicates no browser instance could be reached or started at
// the configured debug port. Fatal to the owning worker, not to the run.
var ErrConnection = errors.New("browser connection failed")

// loggedInIndicators are selectors only present when the profile is signed in.
// The first visible hit wins.
var loggedInIndicators = []string{
	"img[alt*='Profile photo for']",
	".puppeteer_test_add_question_button",
	"a[aria-label='Account menu']",
	"a[href*='/notifications']",
	"input[placeholder='Search Quora']",
	".q-image[alt*='Profile photo']",
}

// Session owns one browser automation connection bound to one local debug
// port. It is owned exclusively by a single worker for the duration of a run
// and is never safe for concurrent use. Authentication state lives in the
// attached browser profile's cookie store.
type Session struct {
	port          int
	attached      bool // true when reusing an already-running instance
	config        common.BrowserConfig
	logger        arbor.ILogger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// Connect binds a session to the browser at port. It first attempts to attach
// to an already-running instance with remote debugging enabled; only if none
// is reachable does it launch a new instance with an isolated profile
// directory at that port, so concurrently running workers never collide.
func Connect(ctx context.Context, config common.BrowserConfig, port int, logger arbor.ILogger) (*Session, error) {
	s := &Session{
		port:   port,
		config: config,
		logger: logger,
	}

	if debugEndpointReachable(ctx, port) {
		logger.Info().Int("port", port).Msg("Attaching to existing browser instance")
		allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(),
			fmt.Sprintf("http://127.0.0.1:%d", port))
		s.attached = true
		s.allocCancel = allocCancel
		s.browserCtx, s.browserCancel = chromedp.NewContext(allocCtx)
	} else {
		logger.Info().Int("port", port).Msg("No existing browser instance found, launching with remote debugging")
		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), s.buildAllocatorOptions()...)
		s.allocCancel = allocCancel
		s.browserCtx, s.browserCancel = chromedp.NewContext(allocCtx)
	}

	// Startup test: a fresh tab must respond before the session is handed out
	testCtx, testCancel := context.WithTimeout(s.browserCtx, config.ConnectTimeout)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: port %d: %v", ErrConnection, port, err)
	}

	logger.Debug().Int("port", port).Bool("attached", s.attached).Msg("Browser session established")
	return s, nil
}

// buildAllocatorOptions mirrors the flags the operator's pre-launch scripts
// use, so attached and launched instances behave the same.
func (s *Session) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("remote-debugging-port", fmt.Sprintf("%d", s.port)),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserDataDir(filepath.Join(s.config.ProfileDirBase, fmt.Sprintf("colligo_profile_%d", s.port))),
	}
	if s.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.config.UserAgent))
	}
	if s.config.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	return opts
}

// debugEndpointReachable probes the DevTools version endpoint
func debugEndpointReachable(ctx context.Context, port int) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet,
		fmt.Sprintf("http://127.0.0.1:%d/json/version", port), nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Port returns the debug port this session is bound to
func (s *Session) Port() int {
	return s.port
}

// Navigate loads url and waits for the document to be ready
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := s.scopedContext(ctx, s.config.NavigateTimeout)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitVisible waits up to timeout for sel to become visible.
// A miss is reported as found=false, not an error.
func (s *Session) WaitVisible(ctx context.Context, sel string, timeout time.Duration) bool {
	waitCtx, cancel := s.scopedContext(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(sel, chromedp.ByQuery)); err != nil {
		return false
	}
	return true
}

// Text extracts the trimmed text content of the first node matching sel.
// Returns "" when the selector does not resolve within the selector timeout.
func (s *Session) Text(ctx context.Context, sel string) string {
	extractCtx, cancel := s.scopedContext(ctx, s.config.SelectorTimeout)
	defer cancel()

	var value string
	if err := chromedp.Run(extractCtx, chromedp.Text(sel, &value, chromedp.ByQuery)); err != nil {
		s.logger.Debug().Str("selector", sel).Err(err).Msg("Text extraction missed")
		return ""
	}
	return value
}

// InnerHTML extracts the inner HTML of the first node matching sel.
// Returns "" when the selector does not resolve within the selector timeout.
func (s *Session) InnerHTML(ctx context.Context, sel string) string {
	extractCtx, cancel := s.scopedContext(ctx, s.config.SelectorTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(extractCtx, chromedp.InnerHTML(sel, &html, chromedp.ByQuery)); err != nil {
		s.logger.Debug().Str("selector", sel).Err(err).Msg("InnerHTML extraction missed")
		return ""
	}
	return html
}

// Attribute extracts an attribute of the first node matching sel.
// Returns "" when the node or attribute is absent.
func (s *Session) Attribute(ctx context.Context, sel, attr string) string {
	extractCtx, cancel := s.scopedContext(ctx, s.config.SelectorTimeout)
	defer cancel()

	var value string
	var ok bool
	if err := chromedp.Run(extractCtx, chromedp.AttributeValue(sel, attr, &value, &ok, chromedp.ByQuery)); err != nil || !ok {
		return ""
	}
	return value
}

// AnchorHrefs returns the href attribute of every node matching sel, in
// document order. An empty page yields an empty slice, not an error.
func (s *Session) AnchorHrefs(ctx context.Context, sel string) ([]string, error) {
	extractCtx, cancel := s.scopedContext(ctx, s.config.SelectorTimeout)
	defer cancel()

	var nodes []*cdp.Node
	if err := chromedp.Run(extractCtx,
		chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("query %s: %w", sel, err)
	}

	hrefs := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if href := node.AttributeValue("href"); href != "" {
			hrefs = append(hrefs, href)
		}
	}
	return hrefs, nil
}

// DocumentHTML returns the full serialized document of the current page
func (s *Session) DocumentHTML(ctx context.Context) (string, error) {
	extractCtx, cancel := s.scopedContext(ctx, s.config.SelectorTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(extractCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("document snapshot: %w", err)
	}
	return html, nil
}

// Location returns the current page URL
func (s *Session) Location(ctx context.Context) string {
	locCtx, cancel := s.scopedContext(ctx, s.config.SelectorTimeout)
	defer cancel()

	var loc string
	if err := chromedp.Run(locCtx, chromedp.Location(&loc)); err != nil {
		return ""
	}
	return loc
}

// ScrollToBottom scrolls the window to the document end to trigger lazy loading
func (s *Session) ScrollToBottom(ctx context.Context) error {
	scrollCtx, cancel := s.scopedContext(ctx, s.config.SelectorTimeout)
	defer cancel()

	if err := chromedp.Run(scrollCtx,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil)); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

// PageHeight returns document.body.scrollHeight, used for stagnation detection
func (s *Session) PageHeight(ctx context.Context) (int64, error) {
	evalCtx, cancel := s.scopedContext(ctx, s.config.SelectorTimeout)
	defer cancel()

	var height int64
	if err := chromedp.Run(evalCtx,
		chromedp.Evaluate(`document.body.scrollHeight`, &height)); err != nil {
		return 0, fmt.Errorf("page height: %w", err)
	}
	return height, nil
}

// IsAuthenticated reports whether the session's profile is signed in, by
// checking the known logged-in indicators in a single page evaluation.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	authCtx, cancel := s.scopedContext(ctx, s.config.SelectorTimeout)
	defer cancel()

	script := `(function(sels) {
		return sels.some(function(sel) {
			var el = document.querySelector(sel);
			return el !== null && el.offsetParent !== null;
		});
	})(` + indicatorsJSON() + `)`

	var authenticated bool
	if err := chromedp.Run(authCtx, chromedp.Evaluate(script, &authenticated)); err != nil {
		s.logger.Warn().Err(err).Int("port", s.port).Msg("Authentication check failed to evaluate")
		return false
	}
	return authenticated
}

// indicatorsJSON renders the indicator selectors as a JS array literal
func indicatorsJSON() string {
	out := "["
	for i, sel := range loggedInIndicators {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%q", sel)
	}
	return out + "]"
}

// scopedContext derives a timeout context from the browser context while
// honoring cancellation of the caller's context.
func (s *Session) scopedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	scoped, cancel := context.WithTimeout(s.browserCtx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return scoped, func() {
		stop()
		cancel()
	}
}

// Close tears down the tab and, for launched instances, the browser process
func (s *Session) Close() {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}
