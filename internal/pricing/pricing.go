package pricing

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/model"
)

// Breakdown is an itemized price quote. All amounts are whole units of
// Currency (KRW and VND have no subunits).
type Breakdown struct {
	BasePrice        decimal.Decimal `json:"basePrice"`
	VehicleSurcharge decimal.Decimal `json:"vehicleSurcharge"`
	ServicesTotal    decimal.Decimal `json:"servicesTotal"`
	Total            decimal.Decimal `json:"total"`
	Currency         Currency        `json:"currency"`
}

// Compute derives the itemized price for a draft. It is a pure function:
// identical drafts yield identical breakdowns.
//
// Transit visas price in VND by party size plus a vehicle surcharge; all
// other visa types price in KRW from the duration/processing table. Unknown
// additional-service ids are dropped from the sum, never an error.
func Compute(d *model.Draft) Breakdown {
	sel := d.VisaSelection

	var b Breakdown
	if sel.VisaType == model.VisaTransit {
		b.Currency = VND
		b.BasePrice = transitBase(sel)
		b.VehicleSurcharge = decimal.NewFromInt(vehicleSurcharges[sel.TransitVehicleType])
	} else {
		b.Currency = KRW
		b.BasePrice = visaBase(sel)
		b.VehicleSurcharge = decimal.Zero
	}

	b.ServicesTotal = servicesTotal(d.AdditionalServices)
	b.Total = b.BasePrice.Add(b.VehicleSurcharge).Add(b.ServicesTotal)
	return b
}

func visaBase(sel model.VisaSelection) decimal.Decimal {
	byProcessing, ok := visaPrices[sel.VisaDurationType]
	if !ok {
		return decimal.Zero
	}
	processing := sel.ProcessingType
	if sel.VisaType != model.VisaUrgent || processing == "" {
		processing = model.ProcessingGeneral
	}
	return decimal.NewFromInt(byProcessing[processing])
}

func transitBase(sel model.VisaSelection) decimal.Decimal {
	byPeople, ok := transitPrices[sel.VisaDurationType]
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromInt(byPeople[model.ClampPeopleCount(sel.TransitPeopleCount)])
}

func servicesTotal(ids []string) decimal.Decimal {
	return lo.Reduce(lo.Uniq(ids), func(sum decimal.Decimal, id string, _ int) decimal.Decimal {
		price, ok := ServicePrice(id)
		if !ok {
			return sum
		}
		return sum.Add(price)
	}, decimal.Zero)
}

// DisplayAmount converts an amount from its pricing currency into a display
// currency using the fixed rates. USD rounds to 2 decimal places; KRW and
// VND round to whole units. The stored breakdown is never mutated.
func DisplayAmount(amount decimal.Decimal, from, to Currency) decimal.Decimal {
	if from == to {
		return roundFor(amount, to)
	}
	usd := amount.Div(perUSD(from))
	if to == USD {
		return usd.Round(2)
	}
	return roundFor(usd.Mul(perUSD(to)), to)
}

func perUSD(c Currency) decimal.Decimal {
	switch c {
	case KRW:
		return krwPerUSD
	case VND:
		return vndPerUSD
	default:
		return decimal.NewFromInt(1)
	}
}

func roundFor(amount decimal.Decimal, c Currency) decimal.Decimal {
	if c == USD {
		return amount.Round(2)
	}
	return amount.Round(0)
}
