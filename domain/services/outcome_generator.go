package services

import (
	"fmt"

	"colorgame/domain/entities"
	"colorgame/domain/interfaces"
)

// RecolorProbability is the chance that a random draw ignores the drawn
// number's color and picks a color uniformly instead
const RecolorProbability = 0.05

// outcomeGenerator implements both outcome strategies over a color rule
type outcomeGenerator struct {
	rule               entities.ColorRule
	rng                interfaces.RandomSource
	recolorProbability float64
}

// NewOutcomeGenerator creates an outcome generator
func NewOutcomeGenerator(rule entities.ColorRule, rng interfaces.RandomSource) interfaces.OutcomeGenerator {
	return &outcomeGenerator{
		rule:               rule,
		rng:                rng,
		recolorProbability: RecolorProbability,
	}
}

// Random draws a number uniformly, then its color. Rule-free numbers take a
// coin flip between their permitted colors. On a recolor the color is drawn
// first and the number is redrawn among those the rule allows for it, so the
// result never breaks the rule.
func (g *outcomeGenerator) Random() (entities.Outcome, error) {
	number, err := g.rng.Intn(entities.MaxNumber + 1)
	if err != nil {
		return entities.Outcome{}, err
	}

	color, err := g.pickColor(g.rule.PermittedColors(number))
	if err != nil {
		return entities.Outcome{}, err
	}

	p, err := g.rng.Float64()
	if err != nil {
		return entities.Outcome{}, err
	}
	if p < g.recolorProbability {
		idx, err := g.rng.Intn(len(entities.AllColors))
		if err != nil {
			return entities.Outcome{}, err
		}
		recolor := entities.AllColors[idx]

		if candidates := entities.NumbersForColor(g.rule, recolor); len(candidates) > 0 {
			idx, err := g.rng.Intn(len(candidates))
			if err != nil {
				return entities.Outcome{}, err
			}
			number = candidates[idx]
			color = recolor
		}
	}

	return entities.NewOutcome(g.rule, number, color)
}

// NumberDistribution returns the probability of each number under Random for
// the given rule. A recolor moves mass toward numbers that are alone in their
// color, so the result is uniform only when every color covers equally many
// numbers.
func NumberDistribution(rule entities.ColorRule) [entities.MaxNumber + 1]float64 {
	var dist [entities.MaxNumber + 1]float64
	numbers := float64(len(dist))
	perColor := RecolorProbability / float64(len(entities.AllColors))

	for n := range dist {
		dist[n] = (1 - RecolorProbability) / numbers
	}
	for _, c := range entities.AllColors {
		candidates := entities.NumbersForColor(rule, c)
		if len(candidates) == 0 {
			// the drawn number is kept
			for n := range dist {
				dist[n] += perColor / numbers
			}
			continue
		}
		for _, n := range candidates {
			dist[n] += perColor / float64(len(candidates))
		}
	}
	return dist
}

func (g *outcomeGenerator) pickColor(colors []entities.Color) (entities.Color, error) {
	if len(colors) == 1 {
		return colors[0], nil
	}
	idx, err := g.rng.Intn(len(colors))
	if err != nil {
		return "", err
	}
	return colors[idx], nil
}

// Manipulated picks the least staked number, lowest value first. Its color is
// the least staked color the rule permits. When the number's fixed color is
// more exposed than the least staked color overall, another number showing
// that color is preferred; alternates rank by number exposure, then value.
func (g *outcomeGenerator) Manipulated(exposure *entities.Exposure) (entities.Outcome, error) {
	if exposure == nil {
		exposure = entities.NewExposure()
	}

	number := lowestExposureNumber(exposure, allNumbers())
	minColor := lowestExposureColor(exposure, entities.AllColors)
	permitted := g.rule.PermittedColors(number)

	if entities.IsRuleFree(g.rule, number) {
		return entities.NewOutcome(g.rule, number, lowestExposureColor(exposure, permitted))
	}

	color := permitted[0]
	if exposure.Colors[color] > exposure.Colors[minColor] {
		if alternates := entities.NumbersForColor(g.rule, minColor); len(alternates) > 0 {
			number = lowestExposureNumber(exposure, alternates)
			color = minColor
		}
	}

	outcome, err := entities.NewOutcome(g.rule, number, color)
	if err != nil {
		return entities.Outcome{}, fmt.Errorf("manipulated outcome broke the color rule: %w", err)
	}
	return outcome, nil
}

func allNumbers() []int {
	numbers := make([]int, 0, entities.MaxNumber+1)
	for n := entities.MinNumber; n <= entities.MaxNumber; n++ {
		numbers = append(numbers, n)
	}
	return numbers
}

// lowestExposureNumber expects candidates in ascending order
func lowestExposureNumber(exposure *entities.Exposure, candidates []int) int {
	best := candidates[0]
	for _, n := range candidates[1:] {
		if exposure.Numbers[n] < exposure.Numbers[best] {
			best = n
		}
	}
	return best
}

// lowestExposureColor expects candidates in tie-break order
func lowestExposureColor(exposure *entities.Exposure, candidates []entities.Color) entities.Color {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if exposure.Colors[c] < exposure.Colors[best] {
			best = c
		}
	}
	return best
}
