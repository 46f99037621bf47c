package index

import (
	"fmt"

	"github.com/luizirber/greyhound/internal/sketch"
)

// GatherResult is one accepted match of the gather loop. Field names follow
// the sourmash gather CSV columns; the abundance-weighted fields are zero
// because query sketches here carry no abundances.
type GatherResult struct {
	IntersectBp       uint64  `json:"intersect_bp"`
	FOrigQuery        float64 `json:"f_orig_query"`
	FMatch            float64 `json:"f_match"`
	FUniqueToQuery    float64 `json:"f_unique_to_query"`
	FUniqueWeighted   float64 `json:"f_unique_weighted"`
	AverageAbund      uint64  `json:"average_abund"`
	MedianAbund       uint64  `json:"median_abund"`
	StdAbund          uint64  `json:"std_abund"`
	Filename          string  `json:"filename"`
	Name              string  `json:"name"`
	Md5               string  `json:"md5"`
	Match             string  `json:"match"`
	FMatchOrig        float64 `json:"f_match_orig"`
	UniqueIntersectBp uint64  `json:"unique_intersect_bp"`
	GatherResultRank  int     `json:"gather_result_rank"`
	RemainingBp       uint64  `json:"remaining_bp"`
}

// Gather runs the iterative best-match decomposition of a query. Each round
// takes the dataset with the highest residual count, records it, then
// subtracts its hashes' contributions from every other dataset (saturating
// at zero) and removes it from the counter. The loop stops when the counter
// is exhausted or the best residual count drops below threshold; a zero
// count explains nothing and never produces a match.
//
// The counter is owned by the call and is consumed.
func (ri *RevIndex) Gather(counter *Counter, threshold uint64, query *sketch.Sketch) ([]GatherResult, error) {
	var matches []GatherResult

	for !counter.IsEmpty() {
		datasetID, matchSize, _ := counter.PeekMax()
		if matchSize == 0 || matchSize < threshold {
			break
		}

		matchPath := ri.sigFiles[datasetID]
		matchMh, err := ri.fetchSketch(datasetID)
		if err != nil {
			return nil, fmt.Errorf("gather: %w", err)
		}

		result, err := ri.resultFor(matchPath, matchMh, matchSize, query, len(matches))
		if err != nil {
			return nil, fmt.Errorf("gather: %w", err)
		}
		matches = append(matches, result)

		// Prepare the counter for the next round: every hash of the chosen
		// match stops counting for the datasets that share it.
		for _, hash := range matchMh.Mins() {
			if ids, ok := ri.hashToIdx[hash]; ok {
				it := ids.Iterator()
				for it.HasNext() {
					counter.DecrementSaturating(it.Next())
				}
			}
		}
		counter.Remove(datasetID)
	}

	return matches, nil
}

// resultFor computes the match statistics at selection time. matchSize is
// the residual count the dataset was selected with.
func (ri *RevIndex) resultFor(matchPath string, matchMh *sketch.Sketch, matchSize uint64, query *sketch.Sketch, rank int) (GatherResult, error) {
	_, rawIntersect, err := matchMh.Intersection(query)
	if err != nil {
		return GatherResult{}, err
	}

	scaled := matchMh.Scaled()
	return GatherResult{
		IntersectBp:       scaled * rawIntersect,
		FOrigQuery:        float64(matchSize) / float64(query.Cardinality()),
		FMatch:            float64(matchSize) / float64(matchMh.Cardinality()),
		FUniqueToQuery:    float64(rawIntersect) / float64(query.Cardinality()),
		Filename:          matchPath,
		Name:              matchMh.Name(),
		UniqueIntersectBp: scaled * matchSize,
		GatherResultRank:  rank,
	}, nil
}
