package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"

	"myhome-publisher/config"
	"myhome-publisher/utils"
)

// Session is one browser plus the one page that drives every listing.
type Session struct {
	Page Page
	// Reused is set when the session was attached to a browser left over
	// from an earlier run, in which case login was skipped.
	Reused bool

	release func() error
}

// NewSession builds a Session whose Close runs release.
func NewSession(page Page, release func() error) *Session {
	return &Session{Page: page, release: release}
}

// Close tears the session down as its mode requires. Production leaves the
// browser open; development only detaches.
func (s *Session) Close() error {
	if s == nil || s.release == nil {
		return nil
	}
	return s.release()
}

// Acquirer produces the authenticated session for a batch run.
type Acquirer interface {
	Acquire(ctx context.Context) (*Session, error)
}

// LoginFunc authenticates a freshly opened page.
type LoginFunc func(ctx context.Context, page Page) error

// Viewport is the fixed window size the form is laid out for.
type Viewport struct {
	Width  int
	Height int
}

// LaunchAcquirer opens a fresh browser and always logs in.
type LaunchAcquirer struct {
	Open     func(ctx context.Context) (*Session, error)
	Login    LoginFunc
	Viewport Viewport
	Logger   *utils.Logger
}

func (a *LaunchAcquirer) Acquire(ctx context.Context) (*Session, error) {
	a.Logger.Info("[browser] Starting in production mode")

	s, err := a.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: launch: %v", ErrAcquisition, err)
	}
	if err := prepare(ctx, s, a.Viewport, a.Login); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// AttachAcquirer reuses a browser listening on the debugging port and only
// starts (and logs into) a new one when nothing answers.
type AttachAcquirer struct {
	Attach       func(ctx context.Context) (*Session, error)
	StartBrowser func(ctx context.Context) error
	Login        LoginFunc
	Viewport     Viewport
	Logger       *utils.Logger
}

func (a *AttachAcquirer) Acquire(ctx context.Context) (*Session, error) {
	a.Logger.Info("[browser] Starting in development mode")

	s, err := a.Attach(ctx)
	if err == nil {
		a.Logger.Info("[browser] Browser found, reusing its session")
		if err := s.Page.SetViewport(ctx, a.Viewport.Width, a.Viewport.Height); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("%w: viewport: %v", ErrAcquisition, err)
		}
		s.Reused = true
		return s, nil
	}

	a.Logger.Warn("[browser] No browser to attach to (%v), starting a new one", err)
	if err := a.StartBrowser(ctx); err != nil {
		return nil, fmt.Errorf("%w: start browser: %v", ErrAcquisition, err)
	}

	s, err = a.Attach(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: attach after start: %v", ErrAcquisition, err)
	}
	if err := prepare(ctx, s, a.Viewport, a.Login); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func prepare(ctx context.Context, s *Session, vp Viewport, login LoginFunc) error {
	if err := s.Page.SetViewport(ctx, vp.Width, vp.Height); err != nil {
		return fmt.Errorf("%w: viewport: %v", ErrAcquisition, err)
	}
	if err := login(ctx, s.Page); err != nil {
		return fmt.Errorf("%w: %w", ErrAcquisition, err)
	}
	return nil
}

// NewAcquirer selects the acquisition strategy for the configured mode.
func NewAcquirer(cfg *config.Config, logger *utils.Logger) Acquirer {
	flow := &LoginFlow{
		FormURL:           cfg.FormURL,
		Email:             cfg.UserEmail,
		Password:          cfg.UserPassword,
		NavigationTimeout: cfg.NavigationTimeout,
		Logger:            logger,
	}
	vp := Viewport{Width: cfg.ViewportW, Height: cfg.ViewportH}

	if cfg.IsProduction() {
		return &LaunchAcquirer{
			Open:     func(ctx context.Context) (*Session, error) { return openChrome(ctx, cfg) },
			Login:    flow.Run,
			Viewport: vp,
			Logger:   logger,
		}
	}

	launcher := &Launcher{
		ChromePath:     cfg.ChromePath,
		Port:           cfg.DebugPort,
		UserDataDir:    cfg.UserDataDir,
		WindowWidth:    cfg.ViewportW,
		WindowHeight:   cfg.ViewportH,
		StartupTimeout: cfg.DevToolsStartupTimeout,
		Logger:         logger,
	}
	return &AttachAcquirer{
		Attach:       func(ctx context.Context) (*Session, error) { return attachChrome(ctx, cfg) },
		StartBrowser: launcher.Start,
		Login:        flow.Run,
		Viewport:     vp,
		Logger:       logger,
	}
}

// openChrome launches a visible browser owned by this process.
func openChrome(ctx context.Context, cfg *config.Config) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-gpu", false),
		chromedp.WindowSize(cfg.ViewportW, cfg.ViewportH),
	)
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	release := func() error {
		if cfg.KeepOpen {
			return nil
		}
		cancelTab()
		cancelAlloc()
		return nil
	}
	return NewSession(NewChromePage(tabCtx, cfg.ElementTimeout), release), nil
}

// attachChrome connects to the browser on the debugging port and takes over
// its first page.
func attachChrome(ctx context.Context, cfg *config.Config) (*Session, error) {
	info, err := FetchVersion(ctx, cfg.DevToolsURL())
	if err != nil {
		return nil, err
	}

	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.Background(), info.WebSocketDebuggerURL)
	browserCtx, _ := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	targets, err := chromedp.Targets(browserCtx)
	if err != nil {
		cancelAlloc()
		return nil, fmt.Errorf("list targets: %w", err)
	}

	tabCtx := browserCtx
	for _, t := range targets {
		if t.Type == "page" {
			tabCtx, _ = chromedp.NewContext(browserCtx, chromedp.WithTargetID(t.TargetID))
			break
		}
	}
	if err := chromedp.Run(tabCtx); err != nil {
		cancelAlloc()
		return nil, fmt.Errorf("attach to page: %w", err)
	}

	return NewSession(NewChromePage(tabCtx, cfg.ElementTimeout), detachRelease), nil
}

// detachRelease is the development teardown. Cancelling a context created
// with WithTargetID makes chromedp close that target, which is the user's
// page and often the browser's last window, so the contexts are left alone
// and the websocket goes away with the process.
func detachRelease() error { return nil }
