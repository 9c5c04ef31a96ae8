package validation

import (
	"math"
	"regexp"
)

// MaxAssetLen bounds asset ids so they fit the fixed-width account layout.
const MaxAssetLen = 32

// MaxAmount is the largest base-unit quantity the ledger stores. Balances live
// in signed 64-bit SQL integers.
const MaxAmount uint64 = math.MaxInt64

// Asset ids: tickers and mint-style ids, no whitespace.
var assetRe = regexp.MustCompile(`^[A-Za-z0-9._:\-]+$`)

// Account names: letters, digits, dots, hyphens, underscores.
var accountNameRe = regexp.MustCompile(`^[A-Za-z0-9._\-]{1,64}$`)

func IsValidAsset(asset string) bool {
	return len(asset) > 0 && len(asset) <= MaxAssetLen && assetRe.MatchString(asset)
}

func IsValidAccountName(name string) bool {
	return accountNameRe.MatchString(name)
}

// IsValidAmount reports whether v is a positive, storable quantity.
func IsValidAmount(v uint64) bool {
	return v > 0 && v <= MaxAmount
}
