package account

import "fmt"

// CategoryCount is the number of payout asset kinds an account can be assigned.
const CategoryCount = 14

// Category identifies the payout asset an account accrues in.
type Category uint8

// Payout asset kinds, in seed-derivation order.
const (
	CategoryWBTC Category = iota
	CategoryWETH
	CategoryLINK
	CategoryUNI
	CategoryAAVE
	CategoryMKR
	CategorySNX
	CategoryCOMP
	CategoryCRV
	CategoryLDO
	CategoryMATIC
	CategoryARB
	CategoryOP
	CategoryGRT
)

type asset struct {
	symbol string
	name   string
}

var assets = [CategoryCount]asset{
	CategoryWBTC:  {symbol: "WBTC", name: "Wrapped Bitcoin"},
	CategoryWETH:  {symbol: "WETH", name: "Wrapped Ether"},
	CategoryLINK:  {symbol: "LINK", name: "Chainlink"},
	CategoryUNI:   {symbol: "UNI", name: "Uniswap"},
	CategoryAAVE:  {symbol: "AAVE", name: "Aave"},
	CategoryMKR:   {symbol: "MKR", name: "Maker"},
	CategorySNX:   {symbol: "SNX", name: "Synthetix"},
	CategoryCOMP:  {symbol: "COMP", name: "Compound"},
	CategoryCRV:   {symbol: "CRV", name: "Curve DAO"},
	CategoryLDO:   {symbol: "LDO", name: "Lido DAO"},
	CategoryMATIC: {symbol: "MATIC", name: "Polygon"},
	CategoryARB:   {symbol: "ARB", name: "Arbitrum"},
	CategoryOP:    {symbol: "OP", name: "Optimism"},
	CategoryGRT:   {symbol: "GRT", name: "The Graph"},
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return int(c) < CategoryCount
}

// Symbol returns the ticker of the category's payout asset.
func (c Category) Symbol() string {
	if !c.Valid() {
		return ""
	}
	return assets[c].symbol
}

// Name returns the human readable asset name.
func (c Category) Name() string {
	if !c.Valid() {
		return ""
	}
	return assets[c].name
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
	return assets[c].symbol
}

// CategoryBySymbol looks up a category by its ticker.
func CategoryBySymbol(symbol string) (Category, bool) {
	for i, a := range assets {
		if a.symbol == symbol {
			return Category(i), true
		}
	}
	return 0, false
}
