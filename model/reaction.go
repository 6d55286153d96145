package model

import "encoding/json"

type ReactionType string

const (
	ReactionLike  ReactionType = "like"
	ReactionLove  ReactionType = "love"
	ReactionCare  ReactionType = "care"
	ReactionLaugh ReactionType = "laugh"
	ReactionSad   ReactionType = "sad"
	ReactionHate  ReactionType = "hate"
)

// ReactionTypes lists every reaction in display order.
var ReactionTypes = []ReactionType{
	ReactionLike, ReactionLove, ReactionCare, ReactionLaugh, ReactionSad, ReactionHate,
}

func (r ReactionType) Valid() bool {
	for _, t := range ReactionTypes {
		if t == r {
			return true
		}
	}
	return false
}

type Reaction struct {
	UserId string       `json:"userId"`
	Type   ReactionType `json:"impressionType"`
}

// ReactionCounts maps a reaction type to its counter. The wire form also
// carries a "total" key, which is dropped on decode and recomputed on encode
// so the total can never disagree with the per-type counters.
type ReactionCounts map[ReactionType]int

const reactionTotalKey = "total"

func (rc ReactionCounts) Total() int {
	total := 0
	for _, c := range rc {
		total += c
	}
	return total
}

func (rc ReactionCounts) MarshalJSON() ([]byte, error) {
	raw := map[string]int{reactionTotalKey: rc.Total()}
	for t, c := range rc {
		raw[string(t)] = c
	}
	return json.Marshal(raw)
}

func (rc *ReactionCounts) UnmarshalJSON(b []byte) error {
	var raw map[string]int
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	res := ReactionCounts{}
	for k, c := range raw {
		if k == reactionTotalKey || c == 0 {
			continue
		}
		res[ReactionType(k)] = c
	}
	*rc = res
	return nil
}

func (rc ReactionCounts) clone() ReactionCounts {
	res := ReactionCounts{}
	for t, c := range rc {
		res[t] = c
	}
	return res
}

func reactionOf(reactions []Reaction, userId string) (ReactionType, bool) {
	for _, r := range reactions {
		if r.UserId == userId {
			return r.Type, true
		}
	}
	return "", false
}
