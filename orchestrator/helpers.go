package orchestrator

import (
	"sort"
	"strings"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/emotion"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/history"
)

func toResult(o emotion.Outcome) Result {
	r := Result{Probabilities: o.Probabilities, Dominant: o.Dominant}
	if o.Degraded {
		r.Warning = o.Reason
	}
	return r
}

func joinWarnings(ws ...string) string {
	var out []string
	for _, w := range ws {
		if w != "" {
			out = append(out, w)
		}
	}
	return strings.Join(out, "; ")
}

// summarize counts entries per modality and dominant label. Entries are
// expected newest first, as returned by history.Log.List.
func summarize(entries []history.Entry) Summary {
	s := Summary{
		Entries:    len(entries),
		ByModality: map[history.Modality]int{},
		ByDominant: map[string]int{},
	}
	if len(entries) == 0 {
		return s
	}
	for _, e := range entries {
		s.ByModality[e.Modality]++
		s.ByDominant[e.Dominant]++
	}
	first := entries[len(entries)-1].Timestamp
	last := entries[0].Timestamp
	s.First, s.Last = &first, &last

	// most frequent label, alphabetical on ties for stable output
	labels := make([]string, 0, len(s.ByDominant))
	for l := range s.ByDominant {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		if s.TopEmotion == "" || s.ByDominant[l] > s.ByDominant[s.TopEmotion] {
			s.TopEmotion = l
		}
	}
	return s
}
