// Package browsertest provides an in-memory browser.Page that records every
// interaction, for tests of code that drives the listing form.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"myhome-publisher/browser"
)

// Action kinds recorded by Page.
const (
	KindNavigate = "navigate"
	KindViewport = "viewport"
	KindWait     = "wait"
	KindClick    = "click"
	KindType     = "type"
	KindFill     = "fill"
	KindUpload   = "upload"
	KindClickNav = "click+nav"
)

// Action is one recorded interaction.
type Action struct {
	Kind   string
	Target string
	Value  string
}

func (a Action) String() string {
	if a.Value == "" {
		return a.Kind + " " + a.Target
	}
	return fmt.Sprintf("%s %s = %q", a.Kind, a.Target, a.Value)
}

// Page is a fake browser.Page. Every locator is present unless listed in
// Missing; groups have DefaultCount elements unless Counts says otherwise.
type Page struct {
	mu sync.Mutex

	CurrentURL   string
	Missing      map[string]bool
	Counts       map[string]int
	DefaultCount int

	// ExistsFunc, when set, overrides Missing for Exists and WaitFor.
	ExistsFunc func(target string) bool
	// OnAction runs for every recorded action; a non-nil error is returned
	// from the page method after the action has been recorded.
	OnAction func(a Action) error

	actions []Action
}

// NewPage returns a Page on about:blank where every element exists.
func NewPage() *Page {
	return &Page{
		CurrentURL:   "about:blank",
		Missing:      map[string]bool{},
		Counts:       map[string]int{},
		DefaultCount: 20,
	}
}

// Remove marks locators as absent.
func (p *Page) Remove(locs ...browser.Locator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range locs {
		p.Missing[l.String()] = true
	}
}

// SetCount fixes the size of a group.
func (p *Page) SetCount(g browser.Group, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Counts[g.String()] = n
}

// Actions returns a copy of everything recorded so far.
func (p *Page) Actions() []Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Action(nil), p.actions...)
}

// Filter returns the recorded actions of one kind.
func (p *Page) Filter(kind string) []Action {
	var out []Action
	for _, a := range p.Actions() {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// Targets returns the targets of the recorded actions of one kind.
func (p *Page) Targets(kind string) []string {
	var out []string
	for _, a := range p.Filter(kind) {
		out = append(out, a.Target)
	}
	return out
}

// Reset forgets the recorded actions.
func (p *Page) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.record(Action{Kind: KindNavigate, Target: url}); err != nil {
		return err
	}
	p.mu.Lock()
	p.CurrentURL = url
	p.mu.Unlock()
	return ctx.Err()
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CurrentURL, ctx.Err()
}

func (p *Page) SetViewport(_ context.Context, width, height int) error {
	return p.record(Action{Kind: KindViewport, Value: fmt.Sprintf("%dx%d", width, height)})
}

func (p *Page) Exists(_ context.Context, loc browser.Locator) (bool, error) {
	return p.exists(loc.String()), nil
}

func (p *Page) Count(_ context.Context, g browser.Group) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n, ok := p.Counts[g.String()]; ok {
		return n, nil
	}
	return p.DefaultCount, nil
}

func (p *Page) WaitFor(_ context.Context, loc browser.Locator, _ time.Duration) error {
	if err := p.record(Action{Kind: KindWait, Target: loc.String()}); err != nil {
		return err
	}
	return p.present(loc)
}

func (p *Page) Click(_ context.Context, loc browser.Locator) error {
	return p.act(Action{Kind: KindClick, Target: loc.String()}, loc)
}

func (p *Page) Type(_ context.Context, loc browser.Locator, text string) error {
	return p.act(Action{Kind: KindType, Target: loc.String(), Value: text}, loc)
}

func (p *Page) Fill(_ context.Context, loc browser.Locator, text string) error {
	return p.act(Action{Kind: KindFill, Target: loc.String(), Value: text}, loc)
}

func (p *Page) Upload(_ context.Context, loc browser.Locator, path string) error {
	return p.act(Action{Kind: KindUpload, Target: loc.String(), Value: path}, loc)
}

func (p *Page) ClickAndWaitNavigation(_ context.Context, loc browser.Locator, _ time.Duration) error {
	return p.act(Action{Kind: KindClickNav, Target: loc.String()}, loc)
}

func (p *Page) act(a Action, loc browser.Locator) error {
	if err := p.present(loc); err != nil {
		return err
	}
	return p.record(a)
}

// present mimics a real page whose element wait runs out.
func (p *Page) present(loc browser.Locator) error {
	if !p.exists(loc.String()) {
		return fmt.Errorf("%w: %s never appeared", browser.ErrTimeout, loc)
	}
	return nil
}

func (p *Page) exists(target string) bool {
	p.mu.Lock()
	fn := p.ExistsFunc
	missing := p.Missing[target]
	p.mu.Unlock()
	if fn != nil {
		return fn(target)
	}
	return !missing
}

func (p *Page) record(a Action) error {
	p.mu.Lock()
	p.actions = append(p.actions, a)
	hook := p.OnAction
	p.mu.Unlock()
	if hook != nil {
		return hook(a)
	}
	return nil
}

var _ browser.Page = (*Page)(nil)
