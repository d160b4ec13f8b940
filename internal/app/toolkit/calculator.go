package toolkit

import (
	"math"

	"taskmaster/internal/common"
)

func Sum(numbers []float64) float64 {
	var total float64
	for _, n := range numbers {
		total += n
	}
	return total
}

func Multiply(cost, quantity float64) float64 {
	return cost * quantity
}

// ApplyDiscount takes percentage off amount, rounded to cents.
func ApplyDiscount(amount, percentage float64) (float64, error) {
	if amount < 0 {
		return 0, common.Validation("Amount must not be negative")
	}
	if percentage < 0 || percentage > 100 {
		return 0, common.Validation("Percentage must be between 0 and 100")
	}
	return roundCents(amount - amount*percentage/100), nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
