package portfolio

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/backtestlab/simcore/internal/lots"
	"github.com/backtestlab/simcore/internal/money"
	"github.com/backtestlab/simcore/internal/simerr"
)

// AccountType identifies the tax treatment of the simulated account,
// per spec.md §6's account.type enumeration.
type AccountType string

const (
	Taxable        AccountType = "Taxable"
	TraditionalIRA AccountType = "Traditional-IRA"
	RothIRA        AccountType = "Roth-IRA"
	Plan529        AccountType = "529-Plan"
)

// Taxed reports whether realized gains and dividends in this account type
// accrue tax during the simulation (spec.md §4.3: IRA/Roth/529 accounts do
// not).
func (a AccountType) Taxed() bool { return a == Taxable }

// FrictionModel captures the commission and slippage parameters applied to
// every trade (spec.md §6 frictions.*).
type FrictionModel struct {
	CommissionPerTrade decimal.Decimal
	SlippageBps        decimal.Decimal
}

// ContributionCaps enforces IRA/Roth annual deposit limits (spec.md §6
// account.contribution_caps).
type ContributionCaps struct {
	Enforce      bool
	IRA          decimal.Decimal
	IRACatchUp   decimal.Decimal
	Roth         decimal.Decimal
	RothCatchUp  decimal.Decimal
	CatchUpEligible bool
}

// limitFor returns the effective annual cap for the account type, or a
// zero decimal if the account type has no cap (Taxable, 529).
func (c ContributionCaps) limitFor(accountType AccountType) decimal.Decimal {
	switch accountType {
	case TraditionalIRA:
		if c.CatchUpEligible {
			return c.IRA.Add(c.IRACatchUp)
		}
		return c.IRA
	case RothIRA:
		if c.CatchUpEligible {
			return c.Roth.Add(c.RothCatchUp)
		}
		return c.Roth
	default:
		return decimal.Zero
	}
}

// Divider receives realized gains, qualified/ordinary dividend splits, and
// wash-sale event counts. internal/tax's Ledger implements this so
// Portfolio stays decoupled from tax-year bookkeeping.
type Divider interface {
	RecordRealizedGain(g RealizedGain)
	RecordDividend(date time.Time, qualified, ordinary decimal.Decimal)
	// RecordWashSaleAdjustment retroactively disallows disallowedAmount of
	// loss from the tax year containing saleDate, and increments that
	// year's wash-sale event counter. The adjustment is attributed to the
	// same short/long-term bucket the original sale belonged to.
	RecordWashSaleAdjustment(saleDate time.Time, disallowedAmount decimal.Decimal, longTerm bool)
}

// Portfolio is the ledger of cash, open lots, and trade history for one
// simulated account. Every mutating operation except Deposit is
// transactional: it either fully applies or returns an error leaving the
// portfolio unchanged (spec.md §4.2). Deposit may credit part of the amount
// and still return an error; see its doc.
type Portfolio struct {
	AccountType AccountType
	Friction    FrictionModel
	Caps        ContributionCaps
	ApplyWash   bool

	Cash                decimal.Decimal
	CumulativeDeposits  decimal.Decimal
	contributionYear    int
	contributionToDate  decimal.Decimal

	positions map[string]*lots.Position
	washes    map[string][]*lots.WashWindow // open wash windows keyed by symbol

	trades     []TradeRecord
	nextTradeID int64

	ledger Divider
}

// New constructs an empty Portfolio funded with initialCash.
func New(accountType AccountType, friction FrictionModel, caps ContributionCaps, applyWash bool, initialCash decimal.Decimal, ledger Divider) *Portfolio {
	return &Portfolio{
		AccountType: accountType,
		Friction:    friction,
		Caps:        caps,
		ApplyWash:   applyWash && accountType == Taxable,
		Cash:        money.RoundCash(initialCash),
		positions:   make(map[string]*lots.Position),
		washes:      make(map[string][]*lots.WashWindow),
		ledger:      ledger,
		nextTradeID: 1,
	}
}

// Trades returns the append-only trade log recorded so far.
func (p *Portfolio) Trades() []TradeRecord { return append([]TradeRecord(nil), p.trades...) }

// Position returns the open position for symbol, or nil if there is none.
func (p *Portfolio) Position(symbol string) *lots.Position { return p.positions[symbol] }

// Symbols returns the set of symbols with an open position, sorted
// lexically so that two runs of an identical config iterate positions in
// the same order (spec.md's determinism requirement: map iteration order
// is not stable across runs, but a sorted slice is).
func (p *Portfolio) Symbols() []string {
	out := make([]string, 0, len(p.positions))
	for s, pos := range p.positions {
		if len(pos.Lots) > 0 {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func (p *Portfolio) positionFor(symbol string) *lots.Position {
	pos, ok := p.positions[symbol]
	if !ok {
		pos = &lots.Position{Symbol: symbol}
		p.positions[symbol] = pos
	}
	return pos
}

func (p *Portfolio) record(date time.Time, symbol string, action Action, qty, price, cashFlow decimal.Decimal) TradeRecord {
	tr := TradeRecord{
		ID:       p.nextTradeID,
		Date:     date,
		Symbol:   symbol,
		Action:   action,
		Quantity: qty,
		Price:    price,
		CashFlow: money.RoundCash(cashFlow),
	}
	p.nextTradeID++
	p.trades = append(p.trades, tr)
	return tr
}

// Deposit increases cash and tracks cumulative and annual-contribution
// totals. For IRA/Roth accounts with caps enforced, a deposit larger than
// the remaining annual room credits only that room and returns
// ContributionCapExceeded; once no room remains, nothing is credited and
// ContributionCapExceeded is returned.
func (p *Portfolio) Deposit(amount decimal.Decimal, date time.Time) error {
	if date.Year() != p.contributionYear {
		p.contributionYear = date.Year()
		p.contributionToDate = decimal.Zero
	}

	credited := amount
	if p.Caps.Enforce {
		limit := p.Caps.limitFor(p.AccountType)
		if limit.IsPositive() {
			room := limit.Sub(p.contributionToDate)
			if room.LessThanOrEqual(decimal.Zero) {
				return simerr.Newf(simerr.KindContributionCapExceeded,
					"annual contribution cap of %s reached", limit.String()).WithDate(date.Format("2006-01-02"))
			}
			if amount.GreaterThan(room) {
				credited = room
			}
		}
	}

	p.Cash = money.RoundCash(p.Cash.Add(credited))
	p.CumulativeDeposits = money.RoundCash(p.CumulativeDeposits.Add(credited))
	p.contributionToDate = p.contributionToDate.Add(credited)
	p.record(date, "", ActionDeposit, decimal.Zero, decimal.Zero, credited)

	if credited.LessThan(amount) {
		return simerr.Newf(simerr.KindContributionCapExceeded,
			"deposit of %s reduced to %s by annual cap", amount.String(), credited.String()).WithDate(date.Format("2006-01-02"))
	}
	return nil
}

// executionPrice applies slippage in the unfavorable direction: higher for
// a BUY, lower for a SELL.
func (p *Portfolio) executionPrice(price decimal.Decimal, buy bool) decimal.Decimal {
	bps := p.Friction.SlippageBps
	if bps.IsZero() {
		return price
	}
	adj := price.Mul(bps).Div(decimal.New(10000, 0))
	if buy {
		return price.Add(adj)
	}
	return price.Sub(adj)
}

// Buy converts notional cash into shares of symbol at price (before
// slippage/commission), creating one new Lot. Fails with InsufficientCash
// if notional exceeds available cash.
func (p *Portfolio) Buy(symbol string, notional, price decimal.Decimal, date time.Time) (TradeRecord, error) {
	if notional.GreaterThan(p.Cash) {
		return TradeRecord{}, simerr.Newf(simerr.KindInsufficientCash,
			"buy %s requires %s, have %s", symbol, notional.String(), p.Cash.String()).
			WithDate(date.Format("2006-01-02")).WithSymbol(symbol)
	}
	execPrice := p.executionPrice(price, true)
	netNotional := notional.Sub(p.Friction.CommissionPerTrade)
	if netNotional.IsNegative() {
		netNotional = decimal.Zero
	}
	shares := money.RoundQuantity(netNotional.Div(execPrice)).Truncate(4)
	if shares.IsNegative() {
		shares = decimal.Zero
	}

	costPerShare := execPrice
	newLot := lots.NewLot(symbol, shares, costPerShare, date)
	p.applyWashSaleOnBuy(newLot, date)

	pos := p.positionFor(symbol)
	pos.Lots = append(pos.Lots, newLot)

	p.Cash = money.RoundCash(p.Cash.Sub(notional))
	tr := p.record(date, symbol, ActionBuy, shares, execPrice, notional.Neg())
	return tr, nil
}

// applyWashSaleOnBuy matches newLot against any open wash windows for its
// symbol that cover date, folding disallowed loss into its basis
// (spec.md §4.2).
func (p *Portfolio) applyWashSaleOnBuy(newLot *lots.Lot, date time.Time) {
	if !p.ApplyWash {
		return
	}
	windows := p.washes[newLot.Symbol]
	remaining := newLot.RemainingQuantity
	for _, w := range windows {
		if remaining.IsZero() {
			break
		}
		if !w.Open() || !w.InWindow(date) {
			continue
		}
		matched, disallowed := w.Match(remaining)
		if matched.IsZero() {
			continue
		}
		newLot.AttributeWashSale(disallowed)
		remaining = remaining.Sub(matched)
		if p.ledger != nil {
			p.ledger.RecordWashSaleAdjustment(w.SaleDate, disallowed, w.LongTerm)
		}
	}
	p.pruneClosedWindows(newLot.Symbol)
}

func (p *Portfolio) pruneClosedWindows(symbol string) {
	open := p.washes[symbol][:0]
	for _, w := range p.washes[symbol] {
		if w.Open() {
			open = append(open, w)
		}
	}
	p.washes[symbol] = open
}

// Sell consumes lots of symbol in disposal-method order until shares have
// been accounted for, emitting a RealizedGain per consumed lot portion.
// Fails with InsufficientShares if shares exceeds the open position.
func (p *Portfolio) Sell(symbol string, shares, price decimal.Decimal, date time.Time, method lots.Method) (TradeRecord, error) {
	pos := p.positionFor(symbol)
	have := pos.Shares()
	if shares.GreaterThan(have) {
		return TradeRecord{}, simerr.Newf(simerr.KindInsufficientShares,
			"sell %s shares of %s, have %s", shares.String(), symbol, have.String()).
			WithDate(date.Format("2006-01-02")).WithSymbol(symbol)
	}

	execPrice := p.executionPrice(price, false)
	ordered := lots.Ordered(pos.Lots, method)

	remaining := shares
	var survivors []*lots.Lot
	for _, l := range ordered {
		if remaining.IsZero() {
			survivors = append(survivors, l)
			continue
		}
		take := l.RemainingQuantity
		if take.GreaterThan(remaining) {
			take = remaining
		}
		if take.IsPositive() {
			p.consumeLot(pos, l, take, execPrice, symbol, date)
			remaining = remaining.Sub(take)
		}
		if !l.Closed() {
			survivors = append(survivors, l)
		}
	}
	pos.Lots = survivors

	proceeds := shares.Mul(execPrice).Sub(p.Friction.CommissionPerTrade)
	p.Cash = money.RoundCash(p.Cash.Add(proceeds))
	tr := p.record(date, symbol, ActionSell, shares, execPrice, proceeds)
	return tr, nil
}

// consumeLot reduces l's remaining quantity by qty, emits a RealizedGain,
// and handles wash-sale attribution if the realization is a loss in a
// taxable account: shares already bought in the 30 days preceding the sale
// (pos's other open lots) are matched first, then any unmatched loss opens
// a forward WashWindow for a later replacement buy (spec.md §4.2: the ±30
// calendar day window runs both backward and forward from the sale).
func (p *Portfolio) consumeLot(pos *lots.Position, l *lots.Lot, qty, execPrice decimal.Decimal, symbol string, date time.Time) {
	proceeds := qty.Mul(execPrice)
	costBasis := qty.Mul(l.CostBasisPerShare)
	gain := proceeds.Sub(costBasis)

	l.RemainingQuantity = money.RoundQuantity(l.RemainingQuantity.Sub(qty))
	longTerm := lots.IsLongTerm(l.AcquisitionDate, date)

	rg := RealizedGain{
		Date:            date,
		Symbol:          symbol,
		LotAcquiredDate: l.AcquisitionDate,
		Quantity:        qty,
		Proceeds:        money.RoundCash(proceeds),
		CostBasis:       money.RoundCash(costBasis),
		GainLoss:        money.RoundCash(gain),
		LongTerm:        longTerm,
		Account:         p.AccountType,
	}

	if p.ApplyWash && gain.IsNegative() {
		lossPerShare := gain.Neg().Div(qty)
		unmatched := p.applyWashSaleBackward(pos, l, qty, lossPerShare, date, longTerm)
		if unmatched.IsPositive() {
			w := &lots.WashWindow{
				Symbol:       symbol,
				SaleDate:     date,
				LossPerShare: lossPerShare,
				SharesSold:   unmatched,
				LongTerm:     longTerm,
			}
			p.washes[symbol] = append(p.washes[symbol], w)
		}
	}

	if p.ledger != nil {
		p.ledger.RecordRealizedGain(rg)
	}
}

// applyWashSaleBackward matches a loss-sale of lossQty shares against other
// open lots of the same symbol already acquired in the preceding 30
// calendar days, folding the disallowed loss into each replacement lot's
// basis and retroactively lowering the tax ledger's entry for the sale
// date. It returns the portion of lossQty left unmatched, which the caller
// still opens a forward WashWindow for.
func (p *Portfolio) applyWashSaleBackward(pos *lots.Position, soldLot *lots.Lot, lossQty, lossPerShare decimal.Decimal, date time.Time, longTerm bool) decimal.Decimal {
	remaining := lossQty
	for _, other := range pos.Lots {
		if remaining.IsZero() {
			break
		}
		if other == soldLot || !lots.WithinPriorWindow(other.AcquisitionDate, date) {
			continue
		}
		avail := other.AvailableWashCapacity()
		if !avail.IsPositive() {
			continue
		}
		matched := avail
		if matched.GreaterThan(remaining) {
			matched = remaining
		}
		disallowed := matched.Mul(lossPerShare)
		other.AttributeWashSale(disallowed)
		other.ConsumeWashCapacity(matched)
		remaining = remaining.Sub(matched)
		if p.ledger != nil {
			p.ledger.RecordWashSaleAdjustment(date, disallowed, longTerm)
		}
	}
	return remaining
}

// ApplyDividend credits or reinvests a cash dividend on the shares held on
// the ex-date (spec.md §4.2).
func (p *Portfolio) ApplyDividend(symbol string, perShare, qualifiedFraction decimal.Decimal, date time.Time, drip bool, closePrice decimal.Decimal) error {
	pos := p.positionFor(symbol)
	shares := pos.Shares()
	if shares.IsZero() {
		return nil
	}
	amount := money.RoundCash(shares.Mul(perShare))
	if amount.IsZero() {
		return nil
	}

	qualified := money.RoundCash(amount.Mul(qualifiedFraction))
	ordinary := money.RoundCash(amount.Sub(qualified))
	if p.ledger != nil && p.AccountType.Taxed() {
		p.ledger.RecordDividend(date, qualified, ordinary)
	}

	p.record(date, symbol, ActionDividend, decimal.Zero, perShare, amount)

	if drip {
		p.Cash = money.RoundCash(p.Cash.Add(amount))
		_, err := p.Buy(symbol, amount, closePrice, date)
		return err
	}
	p.Cash = money.RoundCash(p.Cash.Add(amount))
	return nil
}

// ApplySplit multiplies every open lot of symbol by ratio.
func (p *Portfolio) ApplySplit(symbol string, ratio decimal.Decimal, date time.Time) {
	pos, ok := p.positions[symbol]
	if !ok {
		return
	}
	for _, l := range pos.Lots {
		l.ApplySplit(ratio)
	}
	p.record(date, symbol, ActionSplit, ratio, decimal.Zero, decimal.Zero)
}

// Mark computes total position value from closes without mutating state.
func (p *Portfolio) Mark(closes map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for symbol, pos := range p.positions {
		price, ok := closes[symbol]
		if !ok {
			continue
		}
		total = total.Add(pos.MarketValue(price))
	}
	return money.RoundCash(total)
}

// TotalValue returns cash plus marked position value.
func (p *Portfolio) TotalValue(closes map[string]decimal.Decimal) decimal.Decimal {
	return money.RoundCash(p.Cash.Add(p.Mark(closes)))
}
