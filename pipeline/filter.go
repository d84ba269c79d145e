package pipeline

import "github.com/onnwee/record-herald/hexapi"

// FilterRecords keeps only events reporting a new outright record
// (position 1). Everything else in the feed carries no obligation here.
func FilterRecords(events []hexapi.ScoreEvent) []hexapi.ScoreEvent {
	out := events[:0:0]
	for _, ev := range events {
		if ev.Position == 1 {
			out = append(out, ev)
		}
	}
	return out
}
