package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Locator describes how to find one DOM element. Expr is a JavaScript
// expression that evaluates to the element or null, so it can be handed to
// chromedp.ByJSPath as is.
type Locator struct {
	desc string
	expr string
}

// Group describes an ordered list of DOM elements. Its expression evaluates
// to an array, possibly empty.
type Group struct {
	desc string
	expr string
}

func (l Locator) String() string { return l.desc }
func (l Locator) Expr() string   { return l.expr }
func (g Group) String() string   { return g.desc }
func (g Group) Expr() string     { return g.expr }

// Query locates the first element matching a CSS selector.
func Query(css string) Locator {
	return Locator{
		desc: css,
		expr: fmt.Sprintf("document.querySelector(%s)", jsString(css)),
	}
}

// QueryAll locates every element matching a CSS selector.
func QueryAll(css string) Group {
	return Group{
		desc: css + "[*]",
		expr: fmt.Sprintf("Array.from(document.querySelectorAll(%s))", jsString(css)),
	}
}

// ByText locates the innermost tag element whose text contains text.
func ByText(tag, text string) Locator {
	return Locator{
		desc: fmt.Sprintf("%s:text(%q)", tag, text),
		expr: fmt.Sprintf("(%s).find((e, _, m) => !m.some(o => o !== e && e.contains(o))) || null",
			textMatches(tag, text)),
	}
}

// AllByText locates every innermost tag element whose text contains text.
func AllByText(tag, text string) Group {
	return Group{
		desc: fmt.Sprintf("%s:text(%q)[*]", tag, text),
		expr: fmt.Sprintf("(%s).filter((e, _, m) => !m.some(o => o !== e && e.contains(o)))",
			textMatches(tag, text)),
	}
}

// ByLabel locates the input that shares a parent with the label showing text.
func ByLabel(text string) Locator {
	return ByText("label", text).Up(1).Find("input")
}

// LastByLabel is ByLabel anchored on the last matching label on the page.
func LastByLabel(text string) Locator {
	return AllByText("label", text).Last().Up(1).Find("input")
}

// Up walks n parent elements up.
func (l Locator) Up(n int) Locator {
	return Locator{
		desc: fmt.Sprintf("%s ^%d", l.desc, n),
		expr: fmt.Sprintf("((e) => { for (let i = 0; e && i < %d; i++) e = e.parentElement; return e || null; })(%s)", n, l.expr),
	}
}

// Child selects the i-th element child. Together with Up it expresses
// "sibling of" relations.
func (l Locator) Child(i int) Locator {
	return Locator{
		desc: fmt.Sprintf("%s > :nth(%d)", l.desc, i),
		expr: fmt.Sprintf("((e) => (e && e.children[%d]) || null)(%s)", i, l.expr),
	}
}

// Find locates the first descendant matching css.
func (l Locator) Find(css string) Locator {
	return Locator{
		desc: fmt.Sprintf("%s >> %s", l.desc, css),
		expr: fmt.Sprintf("((e) => e ? e.querySelector(%s) : null)(%s)", jsString(css), l.expr),
	}
}

// All locates every descendant matching css.
func (l Locator) All(css string) Group {
	return Group{
		desc: fmt.Sprintf("%s >> %s[*]", l.desc, css),
		expr: fmt.Sprintf("((e) => e ? Array.from(e.querySelectorAll(%s)) : [])(%s)", jsString(css), l.expr),
	}
}

// At selects the i-th element of the group.
func (g Group) At(i int) Locator {
	return Locator{
		desc: fmt.Sprintf("%s[%d]", trimAll(g.desc), i),
		expr: fmt.Sprintf("((a) => a[%d] || null)(%s)", i, g.expr),
	}
}

// Last selects the final element of the group.
func (g Group) Last() Locator {
	return Locator{
		desc: fmt.Sprintf("%s[last]", trimAll(g.desc)),
		expr: fmt.Sprintf("((a) => a[a.length - 1] || null)(%s)", g.expr),
	}
}

// Element is the result of a lookup that did not wait. When the element was
// absent every action on it is a no-op, which is what optional form steps
// want; required steps use Require instead and get ErrNotFound.
type Element struct {
	page    Page
	loc     Locator
	present bool
}

// Find looks loc up once. The error is only set when the page itself failed.
func Find(ctx context.Context, p Page, loc Locator) (Element, error) {
	ok, err := p.Exists(ctx, loc)
	if err != nil {
		return Element{}, fmt.Errorf("lookup %s: %w", loc, err)
	}
	return Element{page: p, loc: loc, present: ok}, nil
}

// Require looks loc up once and fails with ErrNotFound when it is absent.
func Require(ctx context.Context, p Page, loc Locator) (Element, error) {
	el, err := Find(ctx, p, loc)
	if err != nil {
		return el, err
	}
	if !el.present {
		return el, fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	return el, nil
}

// WaitFor waits for loc and returns it as a present Element.
func WaitFor(ctx context.Context, p Page, loc Locator, timeout time.Duration) (Element, error) {
	if err := p.WaitFor(ctx, loc, timeout); err != nil {
		return Element{}, fmt.Errorf("wait for %s: %w", loc, err)
	}
	return Element{page: p, loc: loc, present: true}, nil
}

func (e Element) Present() bool { return e.present }

func (e Element) Click(ctx context.Context) error {
	if !e.present {
		return nil
	}
	return e.page.Click(ctx, e.loc)
}

func (e Element) Type(ctx context.Context, text string) error {
	if !e.present {
		return nil
	}
	return e.page.Type(ctx, e.loc, text)
}

func (e Element) Fill(ctx context.Context, text string) error {
	if !e.present {
		return nil
	}
	return e.page.Fill(ctx, e.loc, text)
}

func (e Element) Upload(ctx context.Context, path string) error {
	if !e.present {
		return nil
	}
	return e.page.Upload(ctx, e.loc, path)
}

func textMatches(tag, text string) string {
	return fmt.Sprintf("Array.from(document.querySelectorAll(%s)).filter(e => (e.textContent || '').includes(%s))",
		jsString(tag), jsString(text))
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func trimAll(desc string) string {
	return strings.TrimSuffix(desc, "[*]")
}
