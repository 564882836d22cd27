package myhome

import (
	"context"
	"fmt"
	"time"

	"myhome-publisher/browser"
)

var (
	payWithCardButton = browser.ByText("span", "Pay with card and balance")
	paymentPending    = browser.Query(".luk-cursor-not-allowed")
	paymentMethods    = browser.QueryAll(".luk-cursor-pointer")
	confirmPayment    = browser.ByText("button", "Pay-and-upload")
)

const maxPaymentPoll = 2 * time.Second

// pay completes the purchase step shown after publishing. Some listings are
// free and never show it; a payment control that does not appear within the
// payment timeout therefore counts as done.
func (p *Publisher) pay(ctx context.Context, page browser.Page) error {
	payButton, err := browser.WaitFor(ctx, page, payWithCardButton, p.cfg.PaymentTimeout)
	if browser.IsTimeout(err) && ctx.Err() == nil {
		p.logger.Info("[myhome] No payment step shown, nothing to pay")
		return nil
	}
	if err != nil {
		return err
	}
	if err := payButton.Click(ctx); err != nil {
		return err
	}

	if err := p.waitPaymentEnabled(ctx, page); err != nil {
		return err
	}

	method, err := browser.Require(ctx, page, paymentMethods.At(2))
	if err != nil {
		return err
	}
	if err := method.Click(ctx); err != nil {
		return err
	}

	if _, err := browser.WaitFor(ctx, page, confirmPayment, p.cfg.ElementTimeout); err != nil {
		return err
	}
	if err := page.ClickAndWaitNavigation(ctx, confirmPayment, p.cfg.NavigationTimeout); err != nil {
		return err
	}
	p.logger.Info("[myhome] Payment confirmed")
	return nil
}

// waitPaymentEnabled polls until no payment control carries the disabled
// marker. The poll interval doubles up to maxPaymentPoll; the whole wait is
// bounded by the payment enable timeout.
func (p *Publisher) waitPaymentEnabled(ctx context.Context, page browser.Page) error {
	interval := p.cfg.PaymentPollInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	var deadline time.Time
	if p.cfg.PaymentEnableTimeout > 0 {
		deadline = time.Now().Add(p.cfg.PaymentEnableTimeout)
	}

	for {
		pending, err := page.Exists(ctx, paymentPending)
		if err != nil {
			return err
		}
		if !pending {
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return fmt.Errorf("%w: payment methods still disabled after %v", browser.ErrTimeout, p.cfg.PaymentEnableTimeout)
		}

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		if interval *= 2; interval > maxPaymentPoll {
			interval = maxPaymentPoll
		}
	}
}
