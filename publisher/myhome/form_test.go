package myhome

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myhome-publisher/browser"
	"myhome-publisher/browser/browsertest"
	"myhome-publisher/config"
	"myhome-publisher/models"
	"myhome-publisher/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		City:                 "Tbilisi",
		ContactName:          "Nino",
		ContactPhone:         "599123456",
		MaxPhotos:            12,
		ElementTimeout:       time.Second,
		NavigationTimeout:    time.Second,
		PaymentTimeout:       time.Second,
		PaymentEnableTimeout: time.Second,
		PaymentPollInterval:  time.Millisecond,
	}
}

func testPublisher(cfg *config.Config) *Publisher {
	return New(cfg, utils.NewLoggerWith(utils.LoggerOptions{Writer: io.Discard}))
}

func testListing() *models.Listing {
	return &models.Listing{
		Folder:         "A",
		RealEstateType: 1,
		AgreementType:  0,
		Address:        "Bakhtrioni street",
		Rooms:          3,
		Bedrooms:       2,
		Floor:          "4",
		TotalFloors:    "8",
		Area:           "136.70",
		PriceUSD:       "500",
		Description:    "Lorem ipsum",
	}
}

func indexOf(actions []browsertest.Action, kind, target string) int {
	for i, a := range actions {
		if a.Kind == kind && a.Target == target {
			return i
		}
	}
	return -1
}

func TestSubmitFillsTheFormInOrder(t *testing.T) {
	page := browsertest.NewPage()
	furniture := furnitureHeading.Up(2).Child(1).All("label")
	page.SetCount(furniture, 3)

	photos := []string{"A/1.jpg", "A/2.jpg", "A/3.jpg"}
	err := testPublisher(testConfig()).Submit(context.Background(), page, testListing(), photos)
	require.NoError(t, err)

	actions := page.Actions()
	steps := []struct{ kind, target string }{
		{browsertest.KindWait, realEstateHeading.String()},
		{browsertest.KindClick, realEstateHeading.Up(2).All("label").At(1).String()},
		{browsertest.KindClick, dealTypeHeading.Up(2).All("label").At(0).String()},
		{browsertest.KindType, pageInputs.At(0).String()},
		{browsertest.KindClick, browser.ByText("li", "Tbilisi").String()},
		{browsertest.KindType, pageInputs.At(1).String()},
		{browsertest.KindClick, directionOption.String()},
		{browsertest.KindClick, roomsLabel.Up(2).Child(1).All("label").At(2).String()},
		{browsertest.KindClick, roomsLabel.Up(2).Child(3).All("label").At(1).String()},
		{browsertest.KindType, floorInput.String()},
		{browsertest.KindType, totalFloorInput.String()},
		{browsertest.KindClick, statusDropdown.String()},
		{browsertest.KindClick, projectTypeDropdown.String()},
		{browsertest.KindClick, furniture.At(2).String()},
		{browsertest.KindType, areaInput.String()},
		{browsertest.KindType, priceInput.String()},
		{browsertest.KindClick, currencyToggle.String()},
		{browsertest.KindFill, descriptionInput.String()},
		{browsertest.KindType, nameInput.String()},
		{browsertest.KindType, ownerNameInput.String()},
		{browsertest.KindType, phoneInput.String()},
		{browsertest.KindUpload, fileInput.String()},
		{browsertest.KindClickNav, publishButton.String()},
	}

	last := -1
	for _, s := range steps {
		i := indexOf(actions[last+1:], s.kind, s.target)
		require.GreaterOrEqual(t, i, 0, "%s %s missing or out of order", s.kind, s.target)
		last += i + 1
	}

	assert.Len(t, page.Targets(browsertest.KindUpload), 3)
	assert.Equal(t, []string{"A/1.jpg", "A/2.jpg", "A/3.jpg"}, values(page.Filter(browsertest.KindUpload)))
	assert.Equal(t, -1, indexOf(actions, browsertest.KindClick, vipOptions.At(0).String()))
	assert.Equal(t, -1, indexOf(actions, browsertest.KindWait, payWithCardButton.String()))
}

func TestSubmitTypesListingValues(t *testing.T) {
	page := browsertest.NewPage()
	require.NoError(t, testPublisher(testConfig()).Submit(context.Background(), page, testListing(), nil))

	typed := map[string]string{}
	for _, a := range page.Filter(browsertest.KindType) {
		typed[a.Target] = a.Value
	}
	assert.Equal(t, "Tbilisi", typed[pageInputs.At(0).String()])
	assert.Equal(t, "Bakhtrioni street", typed[pageInputs.At(1).String()])
	assert.Equal(t, "4", typed[floorInput.String()])
	assert.Equal(t, "8", typed[totalFloorInput.String()])
	assert.Equal(t, "136.70", typed[areaInput.String()])
	assert.Equal(t, "500", typed[priceInput.String()])
	assert.Equal(t, "599123456", typed[phoneInput.String()])
	assert.Empty(t, page.Filter(browsertest.KindUpload))
}

func TestSubmitSelectsEveryFurnitureOption(t *testing.T) {
	page := browsertest.NewPage()
	furniture := furnitureHeading.Up(2).Child(1).All("label")
	page.SetCount(furniture, 5)

	require.NoError(t, testPublisher(testConfig()).Submit(context.Background(), page, testListing(), nil))

	clicked := 0
	for i := 0; i < 5; i++ {
		if indexOf(page.Actions(), browsertest.KindClick, furniture.At(i).String()) >= 0 {
			clicked++
		}
	}
	assert.Equal(t, 5, clicked)
}

func TestSubmitVIP(t *testing.T) {
	vip := 1
	l := testListing()
	l.VIPStatus = &vip

	t.Run("allowed", func(t *testing.T) {
		cfg := testConfig()
		cfg.VIPAllowed = true
		page := browsertest.NewPage()
		require.NoError(t, testPublisher(cfg).Submit(context.Background(), page, l, nil))
		assert.GreaterOrEqual(t, indexOf(page.Actions(), browsertest.KindClick, vipOptions.At(1).String()), 0)
	})

	t.Run("not allowed", func(t *testing.T) {
		page := browsertest.NewPage()
		require.NoError(t, testPublisher(testConfig()).Submit(context.Background(), page, l, nil))
		assert.Equal(t, -1, indexOf(page.Actions(), browsertest.KindClick, vipOptions.At(1).String()))
	})

	t.Run("missing tier is structural", func(t *testing.T) {
		cfg := testConfig()
		cfg.VIPAllowed = true
		page := browsertest.NewPage()
		page.Remove(vipOptions.At(1))
		err := testPublisher(cfg).Submit(context.Background(), page, l, nil)
		assert.ErrorIs(t, err, browser.ErrNotFound)
	})
}

func TestSubmitToleratesMissingOptionalFields(t *testing.T) {
	page := browsertest.NewPage()
	page.Remove(statusDropdown, projectTypeDropdown, nameInput, ownerNameInput, phoneInput, floorInput)

	require.NoError(t, testPublisher(testConfig()).Submit(context.Background(), page, testListing(), nil))

	actions := page.Actions()
	assert.Equal(t, -1, indexOf(actions, browsertest.KindType, phoneInput.String()))
	assert.Equal(t, -1, indexOf(actions, browsertest.KindClick, statusDropdown.String()))
	assert.GreaterOrEqual(t, indexOf(actions, browsertest.KindClickNav, publishButton.String()), 0)
}

func TestSubmitFailureKinds(t *testing.T) {
	tests := []struct {
		name    string
		missing browser.Locator
		timeout bool
	}{
		{"publish button gone", publishButton, false},
		{"description gone", descriptionInput, false},
		{"room option gone", roomsLabel.Up(2).Child(1).All("label").At(2), false},
		{"address suggestions never load", directionOption, true},
		{"bedrooms never render", bedroomsLabel, true},
		{"form never loads", realEstateHeading, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := browsertest.NewPage()
			page.Remove(tt.missing)

			err := testPublisher(testConfig()).Submit(context.Background(), page, testListing(), nil)
			require.Error(t, err)
			assert.Equal(t, tt.timeout, browser.IsTimeout(err), "IsTimeout(%v)", err)
			if !tt.timeout {
				assert.True(t, errors.Is(err, browser.ErrNotFound), "ErrNotFound(%v)", err)
			}
			assert.Equal(t, -1, indexOf(page.Actions(), browsertest.KindClickNav, publishButton.String()))
		})
	}
}

func values(actions []browsertest.Action) []string {
	var out []string
	for _, a := range actions {
		out = append(out, a.Value)
	}
	return out
}
