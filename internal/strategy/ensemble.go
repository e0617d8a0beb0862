package strategy

import (
	"github.com/raykavin/marketcascade/internal/core"
	"github.com/samber/lo"
)

// DefaultEnsembleThreshold is the winning-score cutoff when the config
// leaves it unset.
const DefaultEnsembleThreshold = 0.5

// Vote is one sub-strategy's contribution to an ensemble decision.
type Vote struct {
	StrategyID string
	Signal     core.SignalType
	Weight     float64
}

// VoteResult is the full outcome of one ensemble evaluation.
type VoteResult struct {
	Signal     core.SignalType
	Scores     map[core.SignalType]float64
	Votes      []Vote
	Unanimous  bool
	Confidence float64
}

// Ensemble combines the votes of several registered strategies into a
// single weighted signal.
type Ensemble struct {
	registry *Registry
}

// NewEnsemble returns the built-in "ensemble" strategy backed by registry.
func NewEnsemble(registry *Registry) *Ensemble {
	return &Ensemble{registry: registry}
}

func (*Ensemble) ID() string { return "ensemble" }

// PopulateSignal evaluates the vote and returns only the winning class.
func (e *Ensemble) PopulateSignal(ctx *Context) core.SignalType {
	return e.Evaluate(ctx).Signal
}

// classOrder fixes the tie-break order among winning classes.
var classOrder = []core.SignalType{core.SignalBuy, core.SignalSell, core.SignalShort, core.SignalCover}

// Evaluate runs every configured sub-strategy and scores the vote. Unknown
// strategy ids are skipped with a warning and do not contribute to the
// denominator; voters returning none keep their weight in the denominator
// so scores stay comparable across configurations.
func (e *Ensemble) Evaluate(ctx *Context) VoteResult {
	cfg := ctx.Config.Ensemble
	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = DefaultEnsembleThreshold
	}

	result := VoteResult{
		Signal: core.SignalNone,
		Scores: map[core.SignalType]float64{
			core.SignalBuy:   0,
			core.SignalSell:  0,
			core.SignalShort: 0,
			core.SignalCover: 0,
		},
	}

	var totalWeight float64
	for _, member := range cfg.Strategies {
		sub, err := e.registry.Get(member.ID)
		if err != nil {
			if ctx.Log != nil {
				ctx.Log.WithField("strategy", member.ID).Warn("ensemble: skipping unknown strategy")
			}
			continue
		}
		weight := member.Weight
		if weight <= 0 {
			weight = 1
		}
		signal := sub.PopulateSignal(ctx)
		result.Votes = append(result.Votes, Vote{StrategyID: member.ID, Signal: signal, Weight: weight})
		totalWeight += weight
		if signal != core.SignalNone {
			result.Scores[signal] += weight
		}
	}

	if totalWeight == 0 {
		result.Unanimous = true
		return result
	}

	for class := range result.Scores {
		result.Scores[class] /= totalWeight
	}

	result.Unanimous = lo.EveryBy(result.Votes, func(v Vote) bool {
		return v.Signal == result.Votes[0].Signal
	})

	var winner core.SignalType = core.SignalNone
	var best float64
	for _, class := range classOrder {
		if score := result.Scores[class]; score > best {
			best = score
			winner = class
		}
	}

	fires := winner != core.SignalNone && best >= threshold
	if cfg.Unanimous {
		fires = fires && result.Unanimous
	}

	if fires {
		result.Signal = winner
		result.Confidence = best
	} else {
		// The top losing score is still reported so callers can see how
		// close the vote came.
		result.Confidence = best
	}

	return result
}
