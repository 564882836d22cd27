package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"myhome-publisher/models"
	"myhome-publisher/storage"
	"myhome-publisher/utils"
)

var (
	// areaUnitRegexp matches the unit label at the end of an area value once
	// NFKC has folded "m²" into "m2".
	areaUnitRegexp = regexp.MustCompile(`(?i)\s*(?:m2|sq\.?\s*m|sqm|კვ\.?\s*მ)\.?\s*$`)
	// numberRegexp accepts a plain decimal number.
	numberRegexp = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	// groupedRegexp accepts a number with comma thousands separators, "1,250.5".
	groupedRegexp = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)

	separatorReplacer = strings.NewReplacer(",", "", " ", "", "\u00a0", "", "\u202f", "", "'", "", "$", "")
)

// Normalizer turns raw descriptor records into Listings with every default
// applied, so the form driver never sees a missing value.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize validates p and fills in defaults. Errors wrap storage.ErrDescriptor.
func (n *Normalizer) Normalize(folder string, p *models.PropertyListing) (*models.Listing, error) {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", storage.ErrDescriptor, folder, fmt.Sprintf(format, args...))
	}

	realEstateType, err := parseIndex(withDefault(p.RealEstateType, "0"))
	if err != nil {
		return nil, fail("realEstateType: %v", err)
	}
	if !p.AgreementType.IsSet() {
		return nil, fail("agreementType is required")
	}
	agreementType, err := parseIndex(p.AgreementType)
	if err != nil {
		return nil, fail("agreementType: %v", err)
	}

	rooms, err := parseCount(p.Rooms)
	if err != nil {
		return nil, fail("rooms: %v", err)
	}
	bedrooms, err := parseCount(withDefault(p.Bedrooms, "1"))
	if err != nil {
		return nil, fail("bedrooms: %v", err)
	}

	if !p.TotalFloors.IsSet() {
		return nil, fail("totalFloors is required")
	}
	address := normaliseText(p.Address)
	if address == "" {
		return nil, fail("address is required")
	}

	area, err := parseArea(string(p.Area))
	if err != nil {
		return nil, fail("area: %v", err)
	}

	rawPrice := p.PriceUSD
	if !rawPrice.IsSet() {
		rawPrice = p.Price
	}
	price, err := parsePrice(string(withDefault(rawPrice, "0")))
	if err != nil {
		return nil, fail("price: %v", err)
	}

	listing := &models.Listing{
		Folder:         folder,
		ProductID:      strings.TrimSpace(string(p.ProductID)),
		RealEstateType: realEstateType,
		AgreementType:  agreementType,
		Address:        address,
		Rooms:          rooms,
		Bedrooms:       bedrooms,
		Floor:          strings.TrimSpace(string(withDefault(p.Floor, "0"))),
		TotalFloors:    strings.TrimSpace(string(p.TotalFloors)),
		Area:           area,
		PriceUSD:       price,
		Description:    p.Description,
	}

	if p.VIPStatus.IsSet() {
		vip, err := parseIndex(p.VIPStatus)
		if err != nil {
			return nil, fail("vipStatus: %v", err)
		}
		listing.VIPStatus = &vip
	}

	n.logger.Debug("[normalizer] %s: rooms=%d bedrooms=%d floor=%s/%s area=%s price=%s",
		folder, listing.Rooms, listing.Bedrooms, listing.Floor, listing.TotalFloors, listing.Area, listing.PriceUSD)
	return listing, nil
}

func withDefault(s models.Scalar, fallback string) models.Scalar {
	if s.IsSet() {
		return s
	}
	return models.Scalar(fallback)
}

// parseIndex reads a zero-based option index.
func parseIndex(s models.Scalar) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(string(s)))
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("%d is negative", v)
	}
	return v, nil
}

// parseCount reads a one-based count.
func parseCount(s models.Scalar) (int, error) {
	if !s.IsSet() {
		return 0, fmt.Errorf("is required")
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(s)))
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	if v < 1 {
		return 0, fmt.Errorf("%d is not positive", v)
	}
	return v, nil
}

// parseArea strips the unit label from values such as "136.70 m²" or
// "136.70 sq.m" and returns the bare number. Commas are only accepted as
// thousands separators; "55,5" is rejected rather than guessed.
func parseArea(raw string) (string, error) {
	s := norm.NFKC.String(strings.TrimSpace(raw))
	s = strings.TrimSpace(areaUnitRegexp.ReplaceAllString(s, ""))
	if groupedRegexp.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}
	if s == "" {
		return "", fmt.Errorf("is required")
	}
	if !numberRegexp.MatchString(s) {
		return "", fmt.Errorf("%q is not a number", raw)
	}
	return s, nil
}

// parsePrice removes thousands separators: "1,250,000" → "1250000".
func parsePrice(raw string) (string, error) {
	s := separatorReplacer.Replace(norm.NFKC.String(strings.TrimSpace(raw)))
	if s == "" {
		return "0", nil
	}
	if !numberRegexp.MatchString(s) {
		return "", fmt.Errorf("%q is not a number", raw)
	}
	return s, nil
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
