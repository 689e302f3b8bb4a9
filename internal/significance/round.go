package significance

import "github.com/shopspring/decimal"

// pValuePlaces is the number of decimal places p-values are reported with.
const pValuePlaces = 4

// RoundPValue rounds p half away from zero to four decimal places.
func RoundPValue(p float64) float64 {
	f, _ := decimal.NewFromFloat(p).Round(pValuePlaces).Float64()
	return f
}
