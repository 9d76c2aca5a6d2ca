package twitterimpl

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/orgball2608/tweet-crosspost-bot/pkg/retry"
)

const loginURL = "https://twitter.com/i/flow/login"

// login walks the interactive login flow: email, an optional identity
// challenge, then the password prompt.
func (t *TwitterImpl) login(ctx context.Context) error {
	if _, err := t.page.Goto(loginURL); err != nil {
		return fmt.Errorf("could not open login flow: %w", err)
	}

	if _, err := t.page.WaitForSelector("input[autocomplete=username]", playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(20000),
	}); err != nil {
		return fmt.Errorf("username input did not appear: %w", err)
	}
	if err := t.page.Type("input[autocomplete=username]", t.config.Twitter.LoginEmail, playwright.PageTypeOptions{
		Delay: playwright.Float(50),
	}); err != nil {
		return fmt.Errorf("could not type login email: %w", err)
	}

	nextOperation := func() error {
		return t.page.Click("div[role=button]:has-text('Next')")
	}
	if err := retry.Do(ctx, t.logger, "LoginNextClick", nextOperation, retry.DefaultConfig()); err != nil {
		return fmt.Errorf("could not advance past email step: %w", err)
	}

	// The platform sometimes challenges with an extra handle/phone prompt
	// before showing the password field.
	if _, err := t.page.WaitForSelector("input[autocomplete=on]", playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(4000),
	}); err == nil {
		t.logger.Info("Identity challenge detected, submitting handle")
		if err := t.page.Type("input[autocomplete=on]", t.config.Twitter.LoginHandle, playwright.PageTypeOptions{
			Delay: playwright.Float(50),
		}); err != nil {
			return fmt.Errorf("could not type challenge handle: %w", err)
		}
		if err := t.page.Click("div[role=button]:has-text('Next')"); err != nil {
			return fmt.Errorf("could not advance past challenge step: %w", err)
		}
	}

	if _, err := t.page.WaitForSelector("input[autocomplete=current-password]", playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(20000),
	}); err != nil {
		return fmt.Errorf("password input did not appear: %w", err)
	}
	if err := t.page.Type("input[autocomplete=current-password]", t.config.Twitter.LoginPassword, playwright.PageTypeOptions{
		Delay: playwright.Float(50),
	}); err != nil {
		return fmt.Errorf("could not type password: %w", err)
	}
	if err := t.page.Click("div[role=button]:has-text('Log in')"); err != nil {
		return fmt.Errorf("could not submit login: %w", err)
	}

	if err := t.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(30000),
	}); err != nil {
		t.logger.Debug("Network did not settle after login submit", "error", err)
	}

	if _, err := t.page.Goto("about:blank"); err != nil {
		t.logger.Debug("Could not navigate away after login", "error", err)
	}
	return nil
}
