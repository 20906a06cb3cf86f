package arbitrage

import (
	"github.com/shopspring/decimal"

	"arbiter/internal/model"
)

// moneyPlaces is the precision of every monetary amount. Rounding is
// half away from zero, which is half-up for the non-negative amounts here.
const moneyPlaces = 2

// Opportunity is a priced buy-on-cheap / sell-on-expensive pair.
type Opportunity struct {
	Buy          model.VenueState
	Sell         model.VenueState
	Quantity     decimal.Decimal
	PurchaseCost decimal.Decimal
	SaleProceeds decimal.Decimal
	Profit       decimal.Decimal
}

// crossing picks the buy and sell side when one venue's ask is strictly
// below the other's bid. The updated venue is tried as the buyer first.
func crossing(updated, other model.VenueState) (buy, sell model.VenueState, ok bool) {
	switch {
	case updated.BestAsk.HasPrice() && updated.BestAsk.Price.LessThan(other.BestBid.Price):
		return updated, other, true
	case other.BestAsk.HasPrice() && other.BestAsk.Price.LessThan(updated.BestBid.Price):
		return other, updated, true
	default:
		return model.VenueState{}, model.VenueState{}, false
	}
}

// price sizes the deal to the thinner side and computes its profit.
// Each leg is rounded before subtracting. It reports false when either
// side has no depth.
func price(buy, sell model.VenueState) (Opportunity, bool) {
	quantity := decimal.Min(buy.BestAsk.Quantity, sell.BestBid.Quantity)
	if !quantity.IsPositive() {
		return Opportunity{}, false
	}

	purchase := quantity.Mul(buy.BestAsk.Price).Round(moneyPlaces)
	sale := quantity.Mul(sell.BestBid.Price).Round(moneyPlaces)
	return Opportunity{
		Buy:          buy,
		Sell:         sell,
		Quantity:     quantity,
		PurchaseCost: purchase,
		SaleProceeds: sale,
		Profit:       sale.Sub(purchase),
	}, true
}
