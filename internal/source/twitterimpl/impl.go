package twitterimpl

import (
	"context"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/orgball2608/tweet-crosspost-bot/internal/source"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/config"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/logger"
	"github.com/orgball2608/tweet-crosspost-bot/pkg/ready"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	LC     fx.Lifecycle
	Config *config.Config
	Logger logger.Logger
}

// TwitterImpl scrapes the timeline of the configured user through a
// logged-in browser session, intercepting the UserTweets GraphQL response
// instead of talking to the API directly.
type TwitterImpl struct {
	config *config.Config
	logger logger.Logger
	gate   *ready.Gate

	mu      sync.Mutex // serializes page navigation
	pw      *playwright.Playwright
	browser playwright.BrowserContext
	page    playwright.Page
}

func New(opts Opts) *TwitterImpl {
	t := &TwitterImpl{
		config: opts.Config,
		logger: opts.Logger.WithComponent("TwitterSource"),
		gate:   ready.NewGate(),
	}

	opts.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return t.close()
		},
	})

	return t
}

var _ source.Client = (*TwitterImpl)(nil)

// Authenticate launches the browser with a persistent profile, probes the
// login state and runs the scripted login flow when needed. The readiness
// gate opens only after a logged-in session is confirmed.
func (t *TwitterImpl) Authenticate(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.gate.IsOpen() {
		return nil
	}

	t.logger.Info("Launching browser for source session", "user_data_dir", t.config.Twitter.UserDataDir)

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("could not start playwright: %w", err)
	}
	t.pw = pw

	browser, err := pw.Chromium.LaunchPersistentContext(
		t.config.Twitter.UserDataDir,
		playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless: playwright.Bool(true),
			Viewport: &playwright.Size{Width: 1920, Height: 1080},
			Args: []string{
				"--no-sandbox",
				"--disable-setuid-sandbox",
				"--disable-dev-shm-usage",
				"--font-render-hinting=none",
			},
		},
	)
	if err != nil {
		_ = pw.Stop()
		return fmt.Errorf("could not launch browser: %w", err)
	}
	t.browser = browser

	page, err := browser.NewPage()
	if err != nil {
		_ = t.close()
		return fmt.Errorf("could not open page: %w", err)
	}
	t.page = page

	loggedIn, err := t.isLoggedIn()
	if err != nil {
		t.logger.Warn("Login state probe failed, attempting login", "error", err)
	}
	if !loggedIn {
		t.logger.Info("No active session found, logging in")
		if err := t.login(ctx); err != nil {
			return fmt.Errorf("source login failed: %w", err)
		}
		if loggedIn, err = t.isLoggedIn(); err != nil || !loggedIn {
			return fmt.Errorf("source login did not produce a session: %w", err)
		}
	}

	t.logger.Info("Source session established", "handle", t.config.Twitter.UserHandle)
	t.gate.Open()
	return nil
}

func (t *TwitterImpl) WaitReady(ctx context.Context) error {
	return t.gate.Wait(ctx)
}

func (t *TwitterImpl) close() error {
	if t.browser != nil {
		if err := t.browser.Close(); err != nil {
			t.logger.Warn("Failed to close browser context", "error", err)
		}
	}
	if t.pw != nil {
		return t.pw.Stop()
	}
	return nil
}

func (t *TwitterImpl) profileURL() string {
	return "https://twitter.com/" + t.config.Twitter.UserHandle
}

// isLoggedIn navigates to the user's profile; an unauthenticated session
// gets redirected away from it.
func (t *TwitterImpl) isLoggedIn() (bool, error) {
	if _, err := t.page.Goto(t.profileURL()); err != nil {
		return false, fmt.Errorf("could not open profile: %w", err)
	}
	if err := t.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(15000),
	}); err != nil {
		t.logger.Debug("Network did not settle while probing login state", "error", err)
	}
	return t.page.URL() == t.profileURL(), nil
}
