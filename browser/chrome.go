package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromePage implements Page on top of a chromedp tab context.
type ChromePage struct {
	tab            context.Context
	elementTimeout time.Duration
}

// NewChromePage wraps a chromedp tab context. elementTimeout bounds every
// element action; zero means 30 seconds.
func NewChromePage(tab context.Context, elementTimeout time.Duration) *ChromePage {
	if elementTimeout <= 0 {
		elementTimeout = 30 * time.Second
	}
	return &ChromePage{tab: tab, elementTimeout: elementTimeout}
}

// Navigate loads url and waits for the load event without a deadline of its
// own; slow pages are tolerated for as long as ctx allows.
func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, 0, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (p *ChromePage) URL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, p.elementTimeout, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return url, nil
}

func (p *ChromePage) SetViewport(ctx context.Context, width, height int) error {
	return p.run(ctx, p.elementTimeout, chromedp.EmulateViewport(int64(width), int64(height)))
}

func (p *ChromePage) Exists(ctx context.Context, loc Locator) (bool, error) {
	var ok bool
	err := p.run(ctx, p.elementTimeout, chromedp.Evaluate(fmt.Sprintf("(%s) != null", loc.Expr()), &ok))
	return ok, err
}

func (p *ChromePage) Count(ctx context.Context, g Group) (int, error) {
	var n int
	err := p.run(ctx, p.elementTimeout, chromedp.Evaluate(fmt.Sprintf("(%s).length", g.Expr()), &n))
	return n, err
}

func (p *ChromePage) WaitFor(ctx context.Context, loc Locator, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.WaitReady(loc.Expr(), chromedp.ByJSPath))
}

func (p *ChromePage) Click(ctx context.Context, loc Locator) error {
	if err := p.run(ctx, p.elementTimeout, chromedp.Click(loc.Expr(), chromedp.ByJSPath)); err != nil {
		return fmt.Errorf("click %s: %w", loc, err)
	}
	return nil
}

func (p *ChromePage) Type(ctx context.Context, loc Locator, text string) error {
	if err := p.run(ctx, p.elementTimeout, chromedp.SendKeys(loc.Expr(), text, chromedp.ByJSPath)); err != nil {
		return fmt.Errorf("type into %s: %w", loc, err)
	}
	return nil
}

func (p *ChromePage) Fill(ctx context.Context, loc Locator, text string) error {
	reset := fmt.Sprintf(`((e) => {
		if (!e) return false;
		e.focus();
		e.value = '';
		e.dispatchEvent(new Event('input', { bubbles: true }));
		return true;
	})(%s)`, loc.Expr())

	var cleared bool
	err := p.run(ctx, p.elementTimeout,
		chromedp.WaitReady(loc.Expr(), chromedp.ByJSPath),
		chromedp.Evaluate(reset, &cleared),
		chromedp.SendKeys(loc.Expr(), text, chromedp.ByJSPath),
	)
	if err != nil {
		return fmt.Errorf("fill %s: %w", loc, err)
	}
	return nil
}

func (p *ChromePage) Upload(ctx context.Context, loc Locator, path string) error {
	if err := p.run(ctx, p.elementTimeout, chromedp.SetUploadFiles(loc.Expr(), []string{path}, chromedp.ByJSPath)); err != nil {
		return fmt.Errorf("upload %s into %s: %w", path, loc, err)
	}
	return nil
}

// ClickAndWaitNavigation arms a load listener before clicking so a fast
// navigation cannot slip past it. Same-document navigations count too.
func (p *ChromePage) ClickAndWaitNavigation(ctx context.Context, loc Locator, timeout time.Duration) error {
	listenCtx, stopListening := context.WithCancel(p.tab)
	defer stopListening()

	navigated := make(chan struct{}, 1)
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		switch ev.(type) {
		case *cdppage.EventLoadEventFired, *cdppage.EventNavigatedWithinDocument:
			select {
			case navigated <- struct{}{}:
			default:
			}
		}
	})

	if err := p.Click(ctx, loc); err != nil {
		return err
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-navigated:
		return nil
	case <-deadline:
		return fmt.Errorf("%w: navigation after clicking %s", ErrTimeout, loc)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes actions on the tab, bounded by timeout (zero means none) and
// by the caller's ctx. Deadlines caused by timeout come back as ErrTimeout.
func (p *ChromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %v: %v", ErrTimeout, timeout, err)
	}
	return err
}
