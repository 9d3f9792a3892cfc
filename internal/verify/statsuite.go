package verify

import "math"

// TestResult is the outcome of one statistical test.
type TestResult struct {
	Name      string
	Statistic float64
	Threshold float64
	Passed    bool
}

// bits unpacks data into a 0/1 slice, MSB-first per byte.
func bits(data []byte) []int {
	out := make([]int, 0, len(data)*8)
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			out = append(out, int((b>>uint(i))&1))
		}
	}
	return out
}

// Monobit checks that the fraction of 1-bits falls in [0.49, 0.51]
// (spec.md §4.9).
func Monobit(data []byte) TestResult {
	b := bits(data)
	if len(b) == 0 {
		return TestResult{Name: "monobit"}
	}
	ones := 0
	for _, v := range b {
		ones += v
	}
	frac := float64(ones) / float64(len(b))
	return TestResult{
		Name:      "monobit",
		Statistic: frac,
		Threshold: 0.01, // +/- half-width around 0.5
		Passed:    frac >= 0.49 && frac <= 0.51,
	}
}

// Runs checks the ratio of observed bit-transitions to the expected
// count (~N*4 for N bytes) falls in [0.9, 1.1].
func Runs(data []byte) TestResult {
	b := bits(data)
	if len(b) < 2 {
		return TestResult{Name: "runs"}
	}
	transitions := 0
	for i := 1; i < len(b); i++ {
		if b[i] != b[i-1] {
			transitions++
		}
	}
	expected := float64(len(data)) * 4
	ratio := float64(transitions) / expected
	return TestResult{
		Name:      "runs",
		Statistic: ratio,
		Threshold: 0.1,
		Passed:    ratio >= 0.9 && ratio <= 1.1,
	}
}

// blockChiSquare runs the generic m-bit block frequency chi-square test
// (poker for m=4, serial for m=2): chi2 = (2^m/M) * sum(n_i^2) - M,
// where M is the number of non-overlapping m-bit blocks.
func blockChiSquare(data []byte, m int) float64 {
	b := bits(data)
	blocks := len(b) / m
	if blocks == 0 {
		return 0
	}
	buckets := make([]int, 1<<uint(m))
	for i := 0; i < blocks; i++ {
		v := 0
		for j := 0; j < m; j++ {
			v = (v << 1) | b[i*m+j]
		}
		buckets[v]++
	}
	var sumSq float64
	for _, n := range buckets {
		sumSq += float64(n) * float64(n)
	}
	k := math.Pow(2, float64(m))
	return (k/float64(blocks))*sumSq - float64(blocks)
}

// Poker is the 4-bit block frequency test; passes when the chi-square
// statistic is below 30.578 (df=15, alpha=0.01).
func Poker(data []byte) TestResult {
	stat := blockChiSquare(data, 4)
	return TestResult{Name: "poker", Statistic: stat, Threshold: 30.578, Passed: stat < 30.578}
}

// Serial is the 2-bit block frequency test; passes when the chi-square
// statistic is below 11.345 (df=3, alpha=0.01).
func Serial(data []byte) TestResult {
	stat := blockChiSquare(data, 2)
	return TestResult{Name: "serial", Statistic: stat, Threshold: 11.345, Passed: stat < 11.345}
}

// Autocorrelation computes the normalized autocorrelation at lag using
// a +/-1 bit mapping; passes when |rho| < 0.1.
func Autocorrelation(data []byte, lag int) TestResult {
	b := bits(data)
	n := len(b) - lag
	name := "autocorrelation"
	if n <= 0 {
		return TestResult{Name: name, Threshold: 0.1}
	}
	var sum float64
	for i := 0; i < n; i++ {
		si := float64(2*b[i] - 1)
		sj := float64(2*b[i+lag] - 1)
		sum += si * sj
	}
	rho := sum / float64(n)
	return TestResult{Name: name, Statistic: rho, Threshold: 0.1, Passed: math.Abs(rho) < 0.1}
}

// AutocorrelationLags is the fixed set of lags the engine tests, per
// spec.md §4.9.
var AutocorrelationLags = []int{1, 2, 8, 16}

// Suite runs the full statistical battery over data (expected to be
// drawn from the final random-fill pass) and returns every result.
func Suite(data []byte) []TestResult {
	results := []TestResult{Monobit(data), Runs(data), Poker(data), Serial(data)}
	for _, lag := range AutocorrelationLags {
		results = append(results, Autocorrelation(data, lag))
	}
	return results
}

// Confidence is the fraction of results that passed, each test counted
// equally, 0..1.
func Confidence(results []TestResult) float64 {
	if len(results) == 0 {
		return 0
	}
	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(results))
}
