package types

import "strings"

// zeroDecimalCurrencies are ISO codes whose minor unit equals the major unit.
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {},
	"KRW": {}, "MGA": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {},
	"VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// MinorUnitFactor is the single place where major-to-minor conversion is
// defined. Everything else in the service carries integer minor units.
func MinorUnitFactor(currency string) int64 {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return 1
	}
	return 100
}

func ToMinorUnits(majorUnits float64, currency string) int64 {
	factor := MinorUnitFactor(currency)
	scaled := majorUnits * float64(factor)
	if scaled >= 0 {
		return int64(scaled + 0.5)
	}
	return int64(scaled - 0.5)
}
