package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/HyojaeJeon/vietnamvisa24-sub001/internal/model"
)

// Currency is the pricing currency. KRW and VND carry no subunits; USD is
// display-only and never stored or submitted.
type Currency string

const (
	KRW Currency = "KRW"
	VND Currency = "VND"
	USD Currency = "USD"
)

// Fixed display-conversion rates. These exist purely for the on-screen
// currency toggle and must never leak into stored or submitted prices.
var (
	krwPerUSD = decimal.NewFromInt(1350)
	vndPerUSD = decimal.NewFromInt(24500)
)

// visaPrices is the KRW base-price table for e-visas, keyed by duration and
// processing speed. Values mirror the published USD price list at 1350 KRW/USD.
var visaPrices = map[model.DurationType]map[model.ProcessingType]int64{
	model.DurationSingle90: {
		model.ProcessingGeneral: 67500,
		model.Express3Day:       94500,
		model.Express2Day:       121500,
		model.Express1Day:       135000,
		model.Express4Hour:      148500,
		model.Express2Hour:      189000,
		model.Express1Hour:      270000,
	},
	model.DurationMultiple90: {
		model.ProcessingGeneral: 108000,
		model.Express3Day:       135000,
		model.Express2Day:       162000,
		model.Express1Day:       175500,
		model.Express4Hour:      189000,
		model.Express2Hour:      229500,
		model.Express1Hour:      310500,
	},
}

// transitPrices is the VND base-price table for transit visa runs, keyed by
// duration and party size (1-3 people).
var transitPrices = map[model.DurationType]map[int]int64{
	model.DurationSingle90: {
		1: 6_900_000,
		2: 12_900_000,
		3: 18_900_000,
	},
	model.DurationMultiple90: {
		1: 8_900_000,
		2: 16_900_000,
		3: 24_900_000,
	},
}

// vehicleSurcharges holds the VND surcharge per transit vehicle. The Innova
// is included in the base price.
var vehicleSurcharges = map[model.VehicleType]int64{
	model.VehicleInnova:   0,
	model.VehicleCarnival: 500_000,
}

// servicePrices lists the KRW price per additional-service id.
var servicePrices = map[string]int64{
	"FAST_TRACK_ARRIVAL":             27000,
	"FAST_TRACK_ARRIVAL_PREMIUM":     40500,
	"AIRPORT_PICKUP_SEDAN_DISTRICT1": 33750,
	"AIRPORT_PICKUP_SEDAN_DISTRICT2": 40500,
	"AIRPORT_PICKUP_SUV_DISTRICT1":   47250,
	"AIRPORT_PICKUP_SUV_DISTRICT2":   54000,
}

// ServicePrice returns the list price for an additional-service id.
// Unknown ids report ok=false and contribute nothing to totals.
func ServicePrice(id string) (decimal.Decimal, bool) {
	p, ok := servicePrices[id]
	return decimal.NewFromInt(p), ok
}

// KnownServiceIDs returns all service ids with a list price.
func KnownServiceIDs() []string {
	ids := make([]string, 0, len(servicePrices))
	for id := range servicePrices {
		ids = append(ids, id)
	}
	return ids
}
