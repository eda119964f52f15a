package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
)

// RealizedGain describes the tax consequence of one lot's consumption
// during a SELL. CostBasis includes any wash-sale basis adjustment
// previously folded into the lot's CostBasisPerShare; a loss disallowed
// because of this sale is not subtracted here, but is reported later
// through Divider.RecordWashSaleAdjustment when a replacement is matched.
// internal/tax accumulates these per calendar year and classifies them
// short/long term using LongTerm.
type RealizedGain struct {
	Date            time.Time
	Symbol          string
	LotAcquiredDate time.Time
	Quantity        decimal.Decimal
	Proceeds        decimal.Decimal
	CostBasis       decimal.Decimal
	GainLoss        decimal.Decimal // Proceeds - CostBasis
	LongTerm        bool
	WashSaleDisallowed decimal.Decimal // not populated by Portfolio (always zero); disallowed amounts go through Divider.RecordWashSaleAdjustment
	Account         AccountType
}
