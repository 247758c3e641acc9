package internal

import (
	"math"
	"sort"
)

// Turn assignment algorithms
const (
	AlgorithmRequestID  = "request-id"
	AlgorithmMergeSplit = "merge-split"
)

// AssignTurns runs the selected algorithm. Both are pure: the input slice is
// never mutated, and the result is a new annotated slice in final
// (turn, sequence) order.
func AssignTurns(items []RawInteraction, algorithm string) ([]RawInteraction, []PartialDataWarning) {
	if algorithm == AlgorithmMergeSplit {
		return AssignTurnsMergeSplit(items), nil
	}
	return AssignTurnsByRequestID(items)
}

// AssignTurnsByRequestID groups interactions sharing a vendor request_id
// into one turn. Groups are ordered by the timestamp of their request member
// (or the group's earliest timestamp when no request is present) and
// numbered 0..N-1; within a group, interactions are ordered by timestamp to
// assign contiguous sequence numbers. Interactions without a request_id are
// dropped and reported as warnings.
func AssignTurnsByRequestID(items []RawInteraction) ([]RawInteraction, []PartialDataWarning) {
	var warnings []PartialDataWarning

	type group struct {
		key     string
		items   []RawInteraction
		orderTS float64
	}

	groupIndex := make(map[string]int)
	var groups []*group

	for _, item := range items {
		if item.RequestID == "" {
			warnings = append(warnings, PartialDataWarning{
				Timestamp: item.Timestamp,
				Type:      item.Type,
			})
			continue
		}
		idx, ok := groupIndex[item.RequestID]
		if !ok {
			idx = len(groups)
			groupIndex[item.RequestID] = idx
			groups = append(groups, &group{key: item.RequestID})
		}
		groups[idx].items = append(groups[idx].items, item)
	}

	for _, g := range groups {
		g.orderTS = math.Inf(1)
		hasRequest := false
		for _, item := range g.items {
			if item.Type == InteractionRequest {
				if !hasRequest || item.Timestamp < g.orderTS {
					g.orderTS = item.Timestamp
				}
				hasRequest = true
			}
		}
		if !hasRequest {
			for _, item := range g.items {
				if item.Timestamp < g.orderTS {
					g.orderTS = item.Timestamp
				}
			}
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].orderTS < groups[j].orderTS
	})

	var out []RawInteraction
	for turn, g := range groups {
		members := sortByTimestamp(g.items)
		for seq := range members {
			members[seq].TurnNumber = float64(turn)
			members[seq].Sequence = seq
		}
		out = append(out, members...)
	}
	return out, warnings
}

// AssignTurnsMergeSplit is the legacy schema-v2 algorithm. A naive state
// machine assigns provisional integer turns (incrementing whenever a request
// follows a response); a repair pass then merges runs of incomplete turns
// and splits multi-pair turns into fractional numbers turn+0.01*k. Fractional
// numbers can collide for turn >= 100 or k >= 100; that hazard is inherited
// from the v2 schema and deliberately left in place.
func AssignTurnsMergeSplit(items []RawInteraction) []RawInteraction {
	sorted := sortByTimestamp(items)
	if len(sorted) == 0 {
		return sorted
	}

	// Provisional turns: a request after a response opens a new turn.
	turn := 0
	prevType := ""
	for i := range sorted {
		if sorted[i].Type == InteractionRequest && prevType == InteractionResponse {
			turn++
		}
		sorted[i].TurnNumber = float64(turn)
		prevType = sorted[i].Type
	}

	merged := mergeIncompleteTurns(sorted)
	split := splitMultiPairTurns(merged)
	return renumberSequences(split)
}

// mergeIncompleteTurns collapses each run of consecutive incomplete turns
// (requests XOR responses) into the first turn number of the run. The
// intermediate numbers disappear from the session.
func mergeIncompleteTurns(items []RawInteraction) []RawInteraction {
	turnOrder, byTurn := groupByTurn(items)

	remap := make(map[float64]float64)
	runStart := -1.0
	for _, t := range turnOrder {
		if isIncompleteTurn(byTurn[t]) {
			if runStart < 0 {
				runStart = t
			}
			remap[t] = runStart
		} else {
			runStart = -1.0
		}
	}

	out := make([]RawInteraction, len(items))
	copy(out, items)
	for i := range out {
		if target, ok := remap[out[i].TurnNumber]; ok {
			out[i].TurnNumber = target
		}
	}
	return out
}

// splitMultiPairTurns assigns fractional turn numbers to complete turns
// holding more than one request-response pair. Pairing scans the
// timestamp-sorted members and starts a new pair at every request; pairs
// keep their chronological order as turn+0.01, turn+0.02, ...
func splitMultiPairTurns(items []RawInteraction) []RawInteraction {
	turnOrder, byTurn := groupByTurn(items)

	out := make([]RawInteraction, 0, len(items))
	for _, t := range turnOrder {
		members := sortByTimestamp(byTurn[t])

		pairs := 0
		pairOf := make([]int, len(members))
		for i, item := range members {
			if item.Type == InteractionRequest {
				pairs++
			}
			if pairs == 0 {
				pairOf[i] = 1
			} else {
				pairOf[i] = pairs
			}
		}

		requests := 0
		responses := 0
		for _, item := range members {
			if item.Type == InteractionRequest {
				requests++
			} else {
				responses++
			}
		}

		if pairs > 1 && requests > 0 && responses > 0 {
			for i := range members {
				members[i].TurnNumber = t + 0.01*float64(pairOf[i])
			}
		}
		out = append(out, members...)
	}
	return out
}

// renumberSequences reassigns contiguous 0-based sequence numbers per final
// turn group, ordered by timestamp, and returns the slice in (turn, sequence)
// order.
func renumberSequences(items []RawInteraction) []RawInteraction {
	turnOrder, byTurn := groupByTurn(items)
	sort.Float64s(turnOrder)

	out := make([]RawInteraction, 0, len(items))
	for _, t := range turnOrder {
		members := sortByTimestamp(byTurn[t])
		for seq := range members {
			members[seq].Sequence = seq
		}
		out = append(out, members...)
	}
	return out
}

// isIncompleteTurn reports whether a turn holds requests XOR responses.
func isIncompleteTurn(members []RawInteraction) bool {
	requests := 0
	responses := 0
	for _, item := range members {
		if item.Type == InteractionRequest {
			requests++
		} else {
			responses++
		}
	}
	return (requests == 0) != (responses == 0)
}

// groupByTurn buckets items by turn number, preserving first-seen turn order.
func groupByTurn(items []RawInteraction) ([]float64, map[float64][]RawInteraction) {
	byTurn := make(map[float64][]RawInteraction)
	var order []float64
	for _, item := range items {
		if _, seen := byTurn[item.TurnNumber]; !seen {
			order = append(order, item.TurnNumber)
		}
		byTurn[item.TurnNumber] = append(byTurn[item.TurnNumber], item)
	}
	return order, byTurn
}

// sortByTimestamp returns a copy sorted by timestamp; requests sort before
// responses on equal timestamps so a paired exchange keeps its direction.
func sortByTimestamp(items []RawInteraction) []RawInteraction {
	out := make([]RawInteraction, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].Type == InteractionRequest && out[j].Type == InteractionResponse
	})
	return out
}
