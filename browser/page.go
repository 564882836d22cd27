package browser

import (
	"context"
	"time"
)

// Page is the single tab the publisher drives. Element actions wait for their
// target up to the page's element timeout and fail with ErrTimeout when it
// never shows up; Exists and Count never wait.
type Page interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	SetViewport(ctx context.Context, width, height int) error

	Exists(ctx context.Context, loc Locator) (bool, error)
	Count(ctx context.Context, g Group) (int, error)
	// WaitFor blocks until loc is attached to the DOM. A zero timeout waits
	// until ctx is done.
	WaitFor(ctx context.Context, loc Locator, timeout time.Duration) error

	Click(ctx context.Context, loc Locator) error
	// Type appends text by sending key events.
	Type(ctx context.Context, loc Locator, text string) error
	// Fill clears the control first, then types text.
	Fill(ctx context.Context, loc Locator, text string) error
	Upload(ctx context.Context, loc Locator, path string) error
	// ClickAndWaitNavigation clicks loc and waits for the navigation it starts.
	ClickAndWaitNavigation(ctx context.Context, loc Locator, timeout time.Duration) error
}
