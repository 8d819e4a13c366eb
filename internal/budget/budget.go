// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package budget distributes a fixed number of detail slots across topics
// in proportion to their weights, then round-robins across the channels of
// each topic under a per-channel cap. The allocation always sums to the
// budget exactly, and output order is deterministic for a fixed input
// order.
package budget

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/Cyberlurch/NewsAgent2-sub000/internal/logging"
	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

// MiscTopic collects items whose channel has no configured topic.
const MiscTopic = "misc"

// defaultWeight applies to topics missing from the weight map.
const defaultWeight = 1.0

// Request is the input of Allocate.
type Request struct {
	Items []types.Item

	// ChannelTopics maps a channel to its topics in configuration order.
	// Only the first topic is used for budgeting.
	ChannelTopics map[string][]string

	TopicWeights map[string]float64

	TotalBudget int

	// PerChannelCap bounds items per channel; non-positive means no cap.
	PerChannelCap int
}

// TopicAllocation is the slot count and outcome for one topic.
type TopicAllocation struct {
	Topic    string  `json:"topic"`
	Weight   float64 `json:"weight"`
	Slots    int     `json:"slots"`
	Selected int     `json:"selected"`

	// LoopGuardHit is set when the round-robin stopped at its iteration
	// ceiling with budget left.
	LoopGuardHit bool `json:"loop_guard_hit,omitempty"`
}

// Diagnostics explain how the budget was spent.
type Diagnostics struct {
	TotalBudget int               `json:"total_budget"`
	Candidates  int               `json:"candidates"`
	Topics      []TopicAllocation `json:"topics,omitempty"`
	Backfilled  int               `json:"backfilled"`
	Selected    int               `json:"selected"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// TopicOf returns the budgeting topic of a channel: its first configured
// topic, or MiscTopic.
func TopicOf(channel string, channelTopics map[string][]string) string {
	if ts := channelTopics[channel]; len(ts) > 0 && ts[0] != "" {
		return ts[0]
	}
	return MiscTopic
}

// Slots computes the per-topic allocation for the active topics, in the
// order given. The result sums to total exactly when total > 0 and topics
// is non-empty.
func Slots(topics []string, weights map[string]float64, total int) map[string]int {
	out := make(map[string]int, len(topics))
	if total <= 0 || len(topics) == 0 {
		return out
	}

	w := make([]float64, len(topics))
	sum := 0.0
	for i, t := range topics {
		w[i] = weightOf(t, weights)
		sum += w[i]
	}
	if sum <= 0 {
		for i := range w {
			w[i] = defaultWeight
		}
		sum = float64(len(w))
	}

	alloc := make([]int, len(topics))
	allocated := 0
	for i := range topics {
		alloc[i] = int(math.RoundToEven(float64(total) * w[i] / sum))
		if alloc[i] < 0 {
			alloc[i] = 0
		}
		allocated += alloc[i]
	}

	for allocated > total {
		idx := argmaxInt(alloc)
		if alloc[idx] <= 0 {
			break
		}
		alloc[idx]--
		allocated--
	}
	if allocated < total {
		idx := argmaxFloat(w)
		alloc[idx] += total - allocated
	}

	for i, t := range topics {
		out[t] = alloc[i]
	}
	return out
}

func weightOf(topic string, weights map[string]float64) float64 {
	if v, ok := weights[topic]; ok {
		return v
	}
	return defaultWeight
}

// argmaxInt returns the first index holding the largest value.
func argmaxInt(v []int) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func argmaxFloat(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// Allocate selects at most req.TotalBudget items. Topics get slots by
// weight; within a topic, channels are visited round-robin in first-seen
// order and dropped from rotation once capped or empty. Leftover slots are
// backfilled from the whole pool in input order, still honoring the
// channel cap. Input items are not modified.
func Allocate(req Request, log logrus.FieldLogger) ([]types.Item, Diagnostics) {
	log = logging.OrDiscard(log)
	diag := Diagnostics{TotalBudget: req.TotalBudget, Candidates: len(req.Items)}
	if req.TotalBudget <= 0 || len(req.Items) == 0 {
		return nil, diag
	}

	type topicGroup struct {
		channels []string
		queues   map[string][]int
	}
	var topicOrder []string
	groups := make(map[string]*topicGroup)
	for i, it := range req.Items {
		topic := TopicOf(it.Channel, req.ChannelTopics)
		g := groups[topic]
		if g == nil {
			g = &topicGroup{queues: make(map[string][]int)}
			groups[topic] = g
			topicOrder = append(topicOrder, topic)
		}
		if _, seen := g.queues[it.Channel]; !seen {
			g.channels = append(g.channels, it.Channel)
		}
		g.queues[it.Channel] = append(g.queues[it.Channel], i)
	}

	slots := Slots(topicOrder, req.TopicWeights, req.TotalBudget)
	capped := func(n int) bool { return req.PerChannelCap > 0 && n >= req.PerChannelCap }

	selected := make([]int, 0, req.TotalBudget)
	taken := make(map[int]bool)
	perChannel := make(map[string]int)

	for _, topic := range topicOrder {
		g := groups[topic]
		ta := TopicAllocation{Topic: topic, Weight: weightOf(topic, req.TopicWeights), Slots: slots[topic]}
		if ta.Slots > 0 {
			rotation := append([]string(nil), g.channels...)
			next := make(map[string]int)
			ceiling := ta.Slots*len(rotation) + len(req.Items) + 1
			pos, iter := 0, 0
			for ta.Selected < ta.Slots && len(rotation) > 0 {
				if iter >= ceiling {
					ta.LoopGuardHit = true
					diag.Warnings = append(diag.Warnings, "loop guard hit for topic "+topic)
					log.WithFields(logrus.Fields{"topic": topic, "slots": ta.Slots, "selected": ta.Selected}).
						Warn("budget round-robin hit its iteration ceiling")
					break
				}
				iter++
				if pos >= len(rotation) {
					pos = 0
				}
				ch := rotation[pos]
				q := g.queues[ch]
				if next[ch] >= len(q) || capped(perChannel[ch]) {
					rotation = append(rotation[:pos], rotation[pos+1:]...)
					continue
				}
				idx := q[next[ch]]
				next[ch]++
				perChannel[ch]++
				taken[idx] = true
				selected = append(selected, idx)
				ta.Selected++
				pos++
			}
		}
		diag.Topics = append(diag.Topics, ta)
	}

	for i := 0; i < len(req.Items) && len(selected) < req.TotalBudget; i++ {
		if taken[i] {
			continue
		}
		ch := req.Items[i].Channel
		if capped(perChannel[ch]) {
			continue
		}
		perChannel[ch]++
		taken[i] = true
		selected = append(selected, i)
		diag.Backfilled++
	}

	if len(selected) > req.TotalBudget {
		selected = selected[:req.TotalBudget]
	}

	out := make([]types.Item, len(selected))
	for i, idx := range selected {
		out[i] = req.Items[idx].Clone()
	}
	diag.Selected = len(out)
	return out, diag
}
