// Package fixed implements the scaled-integer arithmetic behind accrual
// settlement, collateral sizing and capacity pricing. All intermediate
// products run through pooled big.Int values so no computation can
// overflow int64 before the final range check.
package fixed

import (
	"math/big"
	"sync"

	"github.com/yottachain/mena/internal/errs"
	"github.com/yottachain/mena/internal/params"
)

var intPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt() *big.Int {
	return intPool.Get().(*big.Int)
}

func putInt(v *big.Int) {
	v.SetInt64(0)
	intPool.Put(v)
}

// WithinRange reports whether |amount| stays under the global magnitude
// bound shared by balances, fees and rates.
func WithinRange(amount int64) bool {
	return amount <= params.MaxCreditAmount && amount >= -params.MaxCreditAmount
}

// MulDiv computes a * b / den with int128 intermediates, truncating
// toward zero.
func MulDiv(a, b, den int64) int64 {
	num := getInt()
	tmp := getInt()
	num.SetInt64(a)
	tmp.SetInt64(b)
	num.Mul(num, tmp)
	tmp.SetInt64(den)
	num.Quo(num, tmp)
	out := num.Int64()
	putInt(num)
	putInt(tmp)
	return out
}

// mulDiv3 computes a * b * c / den with int128 intermediates, truncating
// toward zero.
func mulDiv3(a, b, c, den int64) int64 {
	num := getInt()
	tmp := getInt()
	num.SetInt64(a)
	tmp.SetInt64(b)
	num.Mul(num, tmp)
	tmp.SetInt64(c)
	num.Mul(num, tmp)
	tmp.SetInt64(den)
	num.Quo(num, tmp)
	out := num.Int64()
	putInt(num)
	putInt(tmp)
	return out
}

// Settle advances a rate-bearing balance from lastSettled to now.
//
// The elapsed interval accrues creditRate and pays debitRate per cycle,
// including the fractional tail of a cycle. The result is the balance as
// of now; the caller is responsible for recording now as the new
// settlement timestamp. Settle must run before any mutation of either
// rate, otherwise the interval since lastSettled accrues at the wrong
// rate.
func Settle(oldBalance int64, debitRate, creditRate int64, lastSettled, now uint64) (int64, error) {
	if now < lastSettled {
		return 0, errs.Invalidf("settlement time %d precedes last settlement %d", now, lastSettled)
	}
	elapsed := int64(now - lastSettled)
	delta := MulDiv(elapsed, creditRate-debitRate, int64(params.CycleMS))
	newBalance := oldBalance + delta
	if !WithinRange(newBalance) {
		return 0, errs.Invalidf("settled balance %d exceeds magnitude bound", newBalance)
	}
	return newBalance, nil
}

// CycleProfitRate derives the per-cycle profit rate earned by prodSpace
// shards of produced capacity: one scaled unit per produced gigabyte per
// accrual year, paid out cycle by cycle.
func CycleProfitRate(prodSpace uint64) int64 {
	return mulDiv3(int64(prodSpace), int64(params.CycleMS), params.ProfitScale,
		int64(params.SpaceOneGB)*int64(params.YearMS))
}

// RequiredCollateral computes the deposit, in base token units, that must
// back space shards of declared capacity at the given collateral rate
// (a percentage, scaled by 100).
func RequiredCollateral(space uint64, rate uint64) int64 {
	return mulDiv3(int64(space), int64(rate), params.TokenUnit,
		int64(params.SpaceOneGB)*100)
}

// Sufficient reports whether deposit covers the collateral required for
// space shards at the given rate.
func Sufficient(deposit int64, space uint64, rate uint64) bool {
	return deposit >= RequiredCollateral(space, rate)
}

// PurchaseCost converts a credit purchase into its token price. Partial
// credit units round the cost up by one base unit so a purchase can never
// underpay.
func PurchaseCost(amount int64, creditPrice, tokenPrice uint64) int64 {
	cost := mulDiv3(amount, int64(creditPrice), 1, params.TokenUnit*int64(tokenPrice))
	if amount%params.TokenUnit > 0 {
		cost++
	}
	return cost
}

// SaleProceeds converts a mining-credit sale into its token payout,
// discounted by the deduplication ratio and the deduplication
// distribution ratio.
func SaleProceeds(amount int64, creditPrice, tokenPrice, dedupRatio, dedupDistRatio uint64) int64 {
	num := getInt()
	tmp := getInt()
	num.SetInt64(amount)
	tmp.SetInt64(int64(creditPrice))
	num.Mul(num, tmp)
	tmp.SetInt64(int64(dedupRatio))
	num.Mul(num, tmp)
	tmp.SetInt64(int64(dedupDistRatio))
	num.Mul(num, tmp)
	tmp.SetInt64(params.TokenUnit * int64(tokenPrice) * 10000 * 10000)
	num.Quo(num, tmp)
	out := num.Int64()
	putInt(num)
	putInt(tmp)
	return out
}
