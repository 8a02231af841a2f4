package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPriceList is used for customers without a default price list
const DefaultPriceList = "Standard Selling"

// BaseRateResolver finds the undiscounted rate of an item for a customer
type BaseRateResolver struct {
	parties          PartyDirectory
	prices           PriceListDirectory
	defaultPriceList string
}

// NewBaseRateResolver creates a base rate resolver. An empty defaultPriceList
// falls back to DefaultPriceList.
func NewBaseRateResolver(parties PartyDirectory, prices PriceListDirectory, defaultPriceList string) *BaseRateResolver {
	if defaultPriceList == "" {
		defaultPriceList = DefaultPriceList
	}
	return &BaseRateResolver{
		parties:          parties,
		prices:           prices,
		defaultPriceList: defaultPriceList,
	}
}

// Resolve returns the item's price on the customer's price list, else on the
// default list, else the item's standard rate, else zero.
func (r *BaseRateResolver) Resolve(ctx context.Context, customer, itemCode string, now time.Time) (decimal.Decimal, error) {
	priceList := r.defaultPriceList
	if customer != "" {
		profile, err := r.parties.CustomerProfile(ctx, customer)
		switch {
		case err == nil:
			if profile.DefaultPriceList != "" {
				priceList = profile.DefaultPriceList
			}
		case !errors.Is(err, ErrUnknownParty):
			return decimal.Zero, fmt.Errorf("failed to load customer %s: %w", customer, err)
		}
	}

	rate, found, err := r.prices.ItemPrice(ctx, itemCode, priceList, now)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load item price: %w", err)
	}
	if found {
		return rate, nil
	}

	item, err := r.parties.ItemProfile(ctx, itemCode)
	if errors.Is(err, ErrUnknownParty) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load item %s: %w", itemCode, err)
	}
	return item.StandardRate, nil
}
