package toolkit

import (
	"fmt"

	"taskmaster/internal/common"
)

const (
	MaxFibonacciTerms = 92 // F(92) is the largest term that fits in int64
	MaxFactorial      = 20
	MaxPrimeLimit     = 10000
	DefaultPrimeLimit = 100
)

// Fibonacci returns the first n terms starting at 0.
func Fibonacci(n int) ([]int64, error) {
	if n < 0 || n > MaxFibonacciTerms {
		return nil, common.Validation(fmt.Sprintf("n must be between 0 and %d", MaxFibonacciTerms))
	}
	seq := make([]int64, 0, n)
	var a, b int64 = 0, 1
	for i := 0; i < n; i++ {
		seq = append(seq, a)
		a, b = b, a+b
	}
	return seq, nil
}

func Factorial(n int) (int64, error) {
	if n < 0 || n > MaxFactorial {
		return 0, common.Validation(fmt.Sprintf("number must be between 0 and %d", MaxFactorial))
	}
	result := int64(1)
	for i := int64(2); i <= int64(n); i++ {
		result *= i
	}
	return result, nil
}

// Primes lists the primes up to and including limit.
func Primes(limit int) ([]int, error) {
	if limit < 1 || limit > MaxPrimeLimit {
		return nil, common.Validation("Validation failed", fmt.Sprintf("limit must be between 1 and %d", MaxPrimeLimit))
	}
	composite := make([]bool, limit+1)
	primes := []int{}
	for i := 2; i <= limit; i++ {
		if composite[i] {
			continue
		}
		primes = append(primes, i)
		for j := i * i; j <= limit; j += i {
			composite[j] = true
		}
	}
	return primes, nil
}
