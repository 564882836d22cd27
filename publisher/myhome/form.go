// Package myhome drives the statements.tnet.ge listing form on behalf of
// myhome.ge: it fills every section, attaches photos, publishes and, when
// purchases are enabled, pays for the listing.
package myhome

import (
	"context"
	"fmt"
	"time"

	"myhome-publisher/browser"
	"myhome-publisher/config"
	"myhome-publisher/models"
	"myhome-publisher/utils"
)

var (
	realEstateHeading = browser.ByText("h2", "Real estate type")
	dealTypeHeading   = browser.ByText("h2", "Deal type")

	pageInputs      = browser.QueryAll("input")
	directionOption = browser.Query(".list-none > li")

	roomsLabel    = browser.ByText("span", "Rooms")
	bedroomsLabel = browser.ByText("span", "Bedroom")

	statusDropdown      = browser.ByText("span", "Choose status")
	projectTypeDropdown = browser.ByText("span", "Choose project type")

	furnitureHeading = browser.ByText("h2", "Furniture and appliances")

	floorInput      = browser.ByLabel("Floor")
	totalFloorInput = browser.ByLabel("Total floors")
	areaInput       = browser.ByLabel("Area")
	priceInput      = browser.ByLabel("Total price")
	currencyToggle  = browser.ByText("div", "$")

	descriptionInput = browser.Query("textarea")
	nameInput        = browser.ByLabel("Name")
	ownerNameInput   = browser.LastByLabel("Name")
	phoneInput       = browser.ByLabel("Type phone number")

	vipOptions    = browser.QueryAll(".services_container").Last().All(".checkbox_container")
	publishButton = browser.ByText("button", "Publish")
)

// Publisher submits listings through the form loaded on a page.
type Publisher struct {
	cfg    *config.Config
	logger *utils.Logger
}

// New creates a Publisher that takes city, owner details, feature flags and
// timeouts from cfg.
func New(cfg *config.Config, logger *utils.Logger) *Publisher {
	return &Publisher{cfg: cfg, logger: logger}
}

// Submit fills the form for one listing and publishes it. The page must
// already show an empty form. Slow page states come back as browser.ErrTimeout;
// a form that does not look as expected comes back as browser.ErrNotFound.
func (p *Publisher) Submit(ctx context.Context, page browser.Page, l *models.Listing, photos []string) error {
	wait := p.cfg.ElementTimeout

	// Step 1-2: predefined options. The first heading is the signal that the
	// form finished loading, however long that takes.
	if err := chooseOption(ctx, page, realEstateHeading, l.RealEstateType, 0); err != nil {
		return fmt.Errorf("real estate type: %w", err)
	}
	if err := chooseOption(ctx, page, dealTypeHeading, l.AgreementType, wait); err != nil {
		return fmt.Errorf("deal type: %w", err)
	}

	// Step 3: location
	if err := p.fillLocation(ctx, page, l.Address); err != nil {
		return fmt.Errorf("location: %w", err)
	}

	// Step 4: rooms and bedrooms
	if err := fillRooms(ctx, page, l.Rooms, l.Bedrooms, wait); err != nil {
		return fmt.Errorf("rooms: %w", err)
	}

	// Step 5: floors
	if err := typeOptional(ctx, page, floorInput, l.Floor); err != nil {
		return fmt.Errorf("floor: %w", err)
	}
	if err := typeOptional(ctx, page, totalFloorInput, l.TotalFloors); err != nil {
		return fmt.Errorf("total floors: %w", err)
	}

	// Step 6: status and project type keep their first option
	for _, dropdown := range []browser.Locator{statusDropdown, projectTypeDropdown} {
		if err := chooseFirstInDropdown(ctx, page, dropdown); err != nil {
			return fmt.Errorf("dropdown %s: %w", dropdown, err)
		}
	}

	// Step 7: furniture and appliances, all of them
	if err := selectAll(ctx, page, furnitureHeading); err != nil {
		return fmt.Errorf("furniture: %w", err)
	}

	// Step 8: pricing
	if err := p.fillPricing(ctx, page, l.Area, l.PriceUSD); err != nil {
		return fmt.Errorf("pricing: %w", err)
	}

	// Step 9: description
	description, err := browser.Require(ctx, page, descriptionInput)
	if err != nil {
		return fmt.Errorf("description: %w", err)
	}
	if err := description.Fill(ctx, l.Description); err != nil {
		return fmt.Errorf("description: %w", err)
	}

	// Step 10: owner information
	if err := p.fillOwner(ctx, page); err != nil {
		return fmt.Errorf("owner: %w", err)
	}

	// Step 11: photos
	uploaded, err := UploadPhotos(ctx, page, photos, p.cfg.MaxPhotos, wait)
	if err != nil {
		return fmt.Errorf("photos: %w", err)
	}
	p.logger.Debug("[myhome] %s: attached %d/%d photos", l.Folder, uploaded, len(photos))

	// Step 12: VIP
	if p.cfg.VIPAllowed && l.VIPStatus != nil {
		vip, err := browser.Require(ctx, page, vipOptions.At(*l.VIPStatus))
		if err != nil {
			return fmt.Errorf("vip: %w", err)
		}
		if err := vip.Click(ctx); err != nil {
			return fmt.Errorf("vip: %w", err)
		}
	}

	// Step 13: publish
	if _, err := browser.Require(ctx, page, publishButton); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if err := page.ClickAndWaitNavigation(ctx, publishButton, p.cfg.NavigationTimeout); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	// Step 14: payment
	if p.cfg.EnablePurchases {
		if err := p.pay(ctx, page); err != nil {
			return fmt.Errorf("payment: %w", err)
		}
	}

	p.logger.Info("[myhome] %s: published", l.Folder)
	return nil
}

// chooseOption clicks the index-th label in the section under heading.
func chooseOption(ctx context.Context, page browser.Page, heading browser.Locator, index int, wait time.Duration) error {
	if _, err := browser.WaitFor(ctx, page, heading, wait); err != nil {
		return err
	}
	option, err := browser.Require(ctx, page, heading.Up(2).All("label").At(index))
	if err != nil {
		return err
	}
	return option.Click(ctx)
}

// fillLocation picks the city from the autocomplete, then the first
// suggestion for the street address. Both inputs are addressed by position,
// which holds because nothing before this step adds inputs.
func (p *Publisher) fillLocation(ctx context.Context, page browser.Page, address string) error {
	wait := p.cfg.ElementTimeout

	city, err := browser.Require(ctx, page, pageInputs.At(0))
	if err != nil {
		return err
	}
	if err := city.Click(ctx); err != nil {
		return err
	}
	if err := city.Type(ctx, p.cfg.City); err != nil {
		return err
	}
	cityOption, err := browser.WaitFor(ctx, page, browser.ByText("li", p.cfg.City), wait)
	if err != nil {
		return err
	}
	if err := cityOption.Click(ctx); err != nil {
		return err
	}

	street, err := browser.Require(ctx, page, pageInputs.At(1))
	if err != nil {
		return err
	}
	if err := street.Type(ctx, address); err != nil {
		return err
	}
	if err := street.Click(ctx); err != nil {
		return err
	}
	suggestion, err := browser.WaitFor(ctx, page, directionOption, wait)
	if err != nil {
		return err
	}
	return suggestion.Click(ctx)
}

// fillRooms selects the room and bedroom counts. Both option rows hang off
// the "Rooms" caption's grandparent; the bedroom row only renders once a
// room count is chosen.
func fillRooms(ctx context.Context, page browser.Page, rooms, bedrooms int, wait time.Duration) error {
	if _, err := browser.Require(ctx, page, roomsLabel); err != nil {
		return err
	}
	section := roomsLabel.Up(2)

	option, err := browser.Require(ctx, page, section.Child(1).All("label").At(rooms-1))
	if err != nil {
		return err
	}
	if err := option.Click(ctx); err != nil {
		return err
	}

	if _, err := browser.WaitFor(ctx, page, bedroomsLabel, wait); err != nil {
		return err
	}
	option, err = browser.Require(ctx, page, section.Child(3).All("label").At(bedrooms-1))
	if err != nil {
		return fmt.Errorf("bedrooms: %w", err)
	}
	return option.Click(ctx)
}

// chooseFirstInDropdown opens a dropdown and keeps its first entry. A
// dropdown that is not on the form is left alone.
func chooseFirstInDropdown(ctx context.Context, page browser.Page, caption browser.Locator) error {
	trigger, err := browser.Find(ctx, page, caption)
	if err != nil {
		return err
	}
	if err := trigger.Click(ctx); err != nil {
		return err
	}
	first, err := browser.Find(ctx, page, caption.Up(2).All("li").At(0))
	if err != nil {
		return err
	}
	return first.Click(ctx)
}

// selectAll ticks every checkbox label of the panel under heading.
func selectAll(ctx context.Context, page browser.Page, heading browser.Locator) error {
	if _, err := browser.Require(ctx, page, heading); err != nil {
		return err
	}
	labels := heading.Up(2).Child(1).All("label")
	n, err := page.Count(ctx, labels)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		label, err := browser.Require(ctx, page, labels.At(i))
		if err != nil {
			return err
		}
		if err := label.Click(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) fillPricing(ctx context.Context, page browser.Page, area, price string) error {
	for _, f := range []struct {
		loc   browser.Locator
		value string
	}{
		{areaInput, area},
		{priceInput, price},
	} {
		input, err := browser.Require(ctx, page, f.loc)
		if err != nil {
			return err
		}
		if err := input.Type(ctx, f.value); err != nil {
			return err
		}
	}

	usd, err := browser.Require(ctx, page, currencyToggle)
	if err != nil {
		return err
	}
	return usd.Click(ctx)
}

// fillOwner fills the contact name in both name fields and the phone number.
// The form does not always show all three, so each is optional.
func (p *Publisher) fillOwner(ctx context.Context, page browser.Page) error {
	for _, f := range []struct {
		loc   browser.Locator
		value string
	}{
		{nameInput, p.cfg.ContactName},
		{ownerNameInput, p.cfg.ContactName},
		{phoneInput, p.cfg.ContactPhone},
	} {
		if err := typeOptional(ctx, page, f.loc, f.value); err != nil {
			return err
		}
	}
	return nil
}

// typeOptional types value into loc when it is on the page.
func typeOptional(ctx context.Context, page browser.Page, loc browser.Locator, value string) error {
	if value == "" {
		return nil
	}
	input, err := browser.Find(ctx, page, loc)
	if err != nil {
		return err
	}
	return input.Type(ctx, value)
}
