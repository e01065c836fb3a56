package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Venue selectors. These mirror the production page structure; when the venue
// redesigns its UI this block is the only thing that should need touching.
const (
	selEmailInput      = `input[name="email"]`
	selPasswordInput   = `input[name="password"]`
	selSubmitButton    = `button[type="submit"]`
	selTradingPlatform = `.trading-platform`
	selAssetDropdown   = `.asset-select`
	selExpiryDropdown  = `.expiration-select`
	selAmountInput     = `.amount-input`
	selCallButton      = `.btn-call`
	selPutButton       = `.btn-put`
)

// BrowserConfig carries the venue URLs and the two wait classes: ElementWait
// for an element to appear or become clickable, NavigateWait for the page
// after a navigation or a submit.
type BrowserConfig struct {
	LoginURL     string
	TradingURL   string
	ElementWait  time.Duration
	NavigateWait time.Duration
	PollInterval time.Duration
}

// Browser drives a headless Chrome tab through the venue's web UI. It is the
// production Surface; one Browser backs exactly one Session.
type Browser struct {
	client *DevToolsClient
	cfg    BrowserConfig
	logger *zap.Logger
}

// OpenBrowser attaches a fresh tab on the DevTools endpoint.
func OpenBrowser(ctx context.Context, devtoolsURL string, cfg BrowserConfig, logger *zap.Logger) (*Browser, error) {
	if cfg.ElementWait <= 0 {
		cfg.ElementWait = 10 * time.Second
	}
	if cfg.NavigateWait <= 0 {
		cfg.NavigateWait = 15 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	client, err := DialDevTools(ctx, devtoolsURL, &http.Client{Timeout: cfg.NavigateWait})
	if err != nil {
		return nil, err
	}
	return &Browser{client: client, cfg: cfg, logger: logger}, nil
}

func (b *Browser) Authenticate(ctx context.Context, creds Credentials) error {
	if err := b.navigate(ctx, b.cfg.LoginURL); err != nil {
		return err
	}
	if err := b.waitForSelector(ctx, selEmailInput, b.cfg.ElementWait); err != nil {
		return err
	}
	if err := b.setValue(ctx, selEmailInput, creds.Username); err != nil {
		return err
	}
	if err := b.setValue(ctx, selPasswordInput, creds.Password); err != nil {
		return err
	}
	if err := b.click(ctx, selSubmitButton, b.cfg.ElementWait); err != nil {
		return err
	}
	// The platform container appearing is the only reliable login signal.
	if err := b.waitForSelector(ctx, selTradingPlatform, b.cfg.NavigateWait); err != nil {
		return fmt.Errorf("login not confirmed: %w", err)
	}
	if b.logger != nil {
		b.logger.Info("venue login confirmed", zap.String("username", creds.Username))
	}
	return nil
}

func (b *Browser) OpenTradingSurface(ctx context.Context) error {
	if err := b.navigate(ctx, b.cfg.TradingURL); err != nil {
		return err
	}
	return b.waitForSelector(ctx, selAssetDropdown, b.cfg.NavigateWait)
}

func (b *Browser) SelectAsset(ctx context.Context, symbol string) error {
	if err := b.click(ctx, selAssetDropdown, b.cfg.ElementWait); err != nil {
		return err
	}
	return b.clickByText(ctx, "asset-item", symbol, b.cfg.ElementWait)
}

func (b *Browser) SetExpiry(ctx context.Context, seconds int) error {
	if err := b.click(ctx, selExpiryDropdown, b.cfg.ElementWait); err != nil {
		return err
	}
	label := strconv.Itoa(seconds) + "s"
	return b.clickByText(ctx, "expiration-item", label, b.cfg.ElementWait)
}

func (b *Browser) PlaceOrder(ctx context.Context, direction string, amount decimal.Decimal) error {
	if err := b.setValue(ctx, selAmountInput, amount.String()); err != nil {
		return err
	}
	button := selPutButton
	if direction == "UP" {
		button = selCallButton
	}
	if err := b.click(ctx, button, b.cfg.ElementWait); err != nil {
		return err
	}
	if b.logger != nil {
		b.logger.Info("order placed",
			zap.String("direction", direction),
			zap.String("amount", amount.String()),
		)
	}
	return nil
}

func (b *Browser) Release() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}

// navigate loads url and waits for the document to finish loading, bounded by
// NavigateWait.
func (b *Browser) navigate(ctx context.Context, url string) error {
	if err := b.client.Call(ctx, "Page.navigate", map[string]any{"url": url}, nil); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return b.waitTrue(ctx, `document.readyState === "complete"`, b.cfg.NavigateWait,
		fmt.Sprintf("page %s did not finish loading", url))
}

func (b *Browser) waitForSelector(ctx context.Context, selector string, wait time.Duration) error {
	expr := fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(selector))
	return b.waitTrue(ctx, expr, wait, fmt.Sprintf("element %s not found", selector))
}

// click waits for the element then clicks it in-page.
func (b *Browser) click(ctx context.Context, selector string, wait time.Duration) error {
	expr := fmt.Sprintf(
		`(() => { const el = document.querySelector(%s); if (!el) return false; el.click(); return true; })()`,
		jsString(selector))
	return b.waitTrue(ctx, expr, wait, fmt.Sprintf("element %s not clickable", selector))
}

// clickByText clicks the first div carrying the given class whose text
// contains needle. Dropdown entries have no stable selectors, only labels.
func (b *Browser) clickByText(ctx context.Context, class, needle string, wait time.Duration) error {
	expr := fmt.Sprintf(
		`(() => {
			const items = document.querySelectorAll(%s);
			for (const el of items) {
				if (el.textContent.includes(%s)) { el.click(); return true; }
			}
			return false;
		})()`,
		jsString("div."+class), jsString(needle))
	return b.waitTrue(ctx, expr, wait, fmt.Sprintf("no %s entry matching %q", class, needle))
}

// setValue assigns the input's value and fires an input event so the page's
// own listeners observe the change.
func (b *Browser) setValue(ctx context.Context, selector, value string) error {
	expr := fmt.Sprintf(
		`(() => {
			const el = document.querySelector(%s);
			if (!el) return false;
			el.value = %s;
			el.dispatchEvent(new Event("input", { bubbles: true }));
			return true;
		})()`,
		jsString(selector), jsString(value))
	return b.waitTrue(ctx, expr, b.cfg.ElementWait, fmt.Sprintf("input %s not found", selector))
}

type evalResult struct {
	Result struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text string `json:"text"`
	} `json:"exceptionDetails"`
}

// waitTrue polls expr until it evaluates to true, failing with reason once
// the bounded wait elapses.
func (b *Browser) waitTrue(ctx context.Context, expr string, wait time.Duration, reason string) error {
	deadline := time.Now().Add(wait)
	for {
		ok, err := b.evalBool(ctx, expr)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s after %s", reason, wait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.cfg.PollInterval):
		}
	}
}

func (b *Browser) evalBool(ctx context.Context, expr string) (bool, error) {
	var res evalResult
	err := b.client.Call(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expr,
		"returnByValue": true,
	}, &res)
	if err != nil {
		return false, err
	}
	if res.ExceptionDetails != nil {
		return false, fmt.Errorf("page script failed: %s", res.ExceptionDetails.Text)
	}
	var value bool
	if res.Result.Type == "boolean" && len(res.Result.Value) > 0 {
		_ = json.Unmarshal(res.Result.Value, &value)
	}
	return value, nil
}

func jsString(s string) string {
	raw, _ := json.Marshal(s)
	return string(raw)
}
