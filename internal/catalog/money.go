package catalog

import "github.com/shopspring/decimal"

func init() {
	// Prices are JSON numbers on every wire this module speaks: menu,
	// order requests, summaries and persisted snapshots.
	decimal.MarshalJSONWithoutQuotes = true
}
