package simulate

import (
	"fmt"
	"io"
	"math"
	"strings"

	"colorgame/domain/entities"
	"colorgame/domain/interfaces"
	"colorgame/domain/services"
)

// chiSquaredCritical95 is the 95% critical value of chi-squared with 9 degrees of freedom
const chiSquaredCritical95 = 16.92

// SelectionStats is the observed performance of one bet selection
type SelectionStats struct {
	Selection entities.BetSelection
	Wins      int
	WinRate   float64

	// ReturnPerUnit is the average credited amount per unit staked
	ReturnPerUnit float64
}

// Report summarizes a run of random draws
type Report struct {
	Trials       int
	NumberCounts [entities.MaxNumber + 1]int
	Expected     [entities.MaxNumber + 1]float64 // probability of each number
	ColorCounts  map[entities.Color]int
	ChiSquared   float64
	Selections   []SelectionStats
}

// allSelections lists every valid selection in display order
func allSelections() []entities.BetSelection {
	selections := make([]entities.BetSelection, 0, len(entities.AllColors)+entities.MaxNumber+1+len(entities.AllSizes))
	for _, c := range entities.AllColors {
		selections = append(selections, entities.ColorSelection{Color: c})
	}
	for n := entities.MinNumber; n <= entities.MaxNumber; n++ {
		selections = append(selections, entities.NumberSelection{Number: n})
	}
	for _, s := range entities.AllSizes {
		selections = append(selections, entities.SizeSelection{Size: s})
	}
	return selections
}

// Analyze draws trials random outcomes and measures the number distribution
// against expected and the return of every selection on a one-unit stake
func Analyze(generator interfaces.OutcomeGenerator, expected [entities.MaxNumber + 1]float64, payout *services.PayoutCalculator, trials int) (*Report, error) {
	if trials <= 0 {
		return nil, fmt.Errorf("trials must be positive, got %d", trials)
	}

	selections := allSelections()
	wins := make([]int, len(selections))
	report := &Report{
		Trials:      trials,
		Expected:    expected,
		ColorCounts: make(map[entities.Color]int, len(entities.AllColors)),
	}

	for i := 0; i < trials; i++ {
		outcome, err := generator.Random()
		if err != nil {
			return nil, fmt.Errorf("draw %d failed: %w", i, err)
		}
		report.NumberCounts[outcome.Number]++
		report.ColorCounts[outcome.Color]++

		for j, s := range selections {
			if s.Wins(outcome) {
				wins[j]++
			}
		}
	}

	for n, count := range report.NumberCounts {
		want := expected[n] * float64(trials)
		report.ChiSquared += math.Pow(float64(count)-want, 2) / want
	}

	for j, s := range selections {
		// one unit staked has a total amount equal to the multiplier
		winAmount := payout.WinAmount(s.Multiplier())
		report.Selections = append(report.Selections, SelectionStats{
			Selection:     s,
			Wins:          wins[j],
			WinRate:       float64(wins[j]) / float64(trials),
			ReturnPerUnit: float64(wins[j]) * float64(winAmount) / float64(trials),
		})
	}

	return report, nil
}

// Write renders the report
func (r *Report) Write(out io.Writer) {
	fmt.Fprintf(out, "=== Outcome analysis over %d draws ===\n\n", r.Trials)

	fmt.Fprintf(out, "Number distribution:\n")
	for n, count := range r.NumberCounts {
		want := r.Expected[n] * float64(r.Trials)
		deviation := (float64(count) - want) / want * 100
		bar := strings.Repeat("#", int(float64(count)/want*20))
		fmt.Fprintf(out, "  %d: %7d (expected %7.0f, %+6.2f%%) %s\n", n, count, want, deviation, bar)
	}

	verdict := "fits"
	if r.ChiSquared >= chiSquaredCritical95 {
		verdict = "does not fit"
	}
	fmt.Fprintf(out, "\n  chi-squared: %.2f (%s at 95%%, critical %.2f)\n", r.ChiSquared, verdict, chiSquaredCritical95)

	fmt.Fprintf(out, "\nColors:\n")
	for _, c := range entities.AllColors {
		fmt.Fprintf(out, "  %-6s %7d (%.2f%%)\n", c, r.ColorCounts[c], float64(r.ColorCounts[c])/float64(r.Trials)*100)
	}

	fmt.Fprintf(out, "\nReturn per unit staked:\n")
	for _, s := range r.Selections {
		fmt.Fprintf(out, "  %-6s %-6s win rate %6.2f%%  return %.4f\n",
			s.Selection.Type(), s.Selection.Value(), s.WinRate*100, s.ReturnPerUnit)
	}
}
