package myhome

import (
	"context"
	"fmt"
	"time"

	"myhome-publisher/browser"
)

// MaxPhotos is the most photos the form accepts for one listing.
const MaxPhotos = 12

var fileInput = browser.Query(`input[type="file"]`)

// UploadPhotos attaches photos in order, at most max of them (MaxPhotos when
// max is zero or larger). The form swaps its file input after every
// attachment, so the input is looked up again, waiting up to wait, before
// each further file. It returns how many photos were attached.
func UploadPhotos(ctx context.Context, page browser.Page, photos []string, max int, wait time.Duration) (int, error) {
	if max <= 0 || max > MaxPhotos {
		max = MaxPhotos
	}
	if len(photos) > max {
		photos = photos[:max]
	}
	if len(photos) == 0 {
		return 0, nil
	}

	input, err := browser.Require(ctx, page, fileInput)
	if err != nil {
		return 0, err
	}
	for i, photo := range photos {
		if i > 0 {
			if input, err = browser.WaitFor(ctx, page, fileInput, wait); err != nil {
				return i, err
			}
		}
		if err := input.Upload(ctx, photo); err != nil {
			return i, fmt.Errorf("photo %d: %w", i+1, err)
		}
	}
	return len(photos), nil
}
