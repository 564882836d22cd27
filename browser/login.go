package browser

import (
	"context"
	"fmt"
	"time"

	"myhome-publisher/utils"
)

var (
	loginTrigger  = Query("button")
	emailField    = Query("#Email")
	passwordField = Query("#Password")
	loginSubmit   = Query("button")
)

// LoginFlow signs in through the form site's login page. It is linear and
// never retried: any failing step aborts acquisition.
type LoginFlow struct {
	FormURL           string
	Email             string
	Password          string
	NavigationTimeout time.Duration
	Logger            *utils.Logger
}

// Run performs the login and leaves the page on the form URL.
func (f *LoginFlow) Run(ctx context.Context, page Page) error {
	if f.Email == "" || f.Password == "" {
		return fmt.Errorf("login: USER_EMAIL and USER_PASSWORD must be set")
	}
	f.Logger.Info("[login] Signing in as %s", f.Email)

	current, err := page.URL(ctx)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if current != f.FormURL {
		if err := page.Navigate(ctx, f.FormURL); err != nil {
			return fmt.Errorf("login: open form: %w", err)
		}
	}

	if err := page.ClickAndWaitNavigation(ctx, loginTrigger, f.NavigationTimeout); err != nil {
		return fmt.Errorf("login: open sign-in page: %w", err)
	}
	if err := page.Fill(ctx, emailField, f.Email); err != nil {
		return fmt.Errorf("login: email: %w", err)
	}
	if err := page.Fill(ctx, passwordField, f.Password); err != nil {
		return fmt.Errorf("login: password: %w", err)
	}
	if err := page.ClickAndWaitNavigation(ctx, loginSubmit, f.NavigationTimeout); err != nil {
		return fmt.Errorf("login: submit: %w", err)
	}
	if err := page.Navigate(ctx, f.FormURL); err != nil {
		return fmt.Errorf("login: return to form: %w", err)
	}

	f.Logger.Info("[login] Signed in")
	return nil
}
