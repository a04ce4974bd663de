package gateway

import "encoding/json"

// parseReactions decodes a stored reactions payload into a fixed
// emoji→count mapping. Upstream collectors have written both
// {"👍": 10} objects and [{"emoji": "👍", "count": 10}] arrays over time,
// so both shapes are accepted. Any unparseable payload yields an empty
// mapping; reaction data is never load-bearing enough to fail a query over.
func parseReactions(raw []byte) map[string]int64 {
	out := make(map[string]int64)
	if len(raw) == 0 {
		return out
	}

	var direct map[string]int64
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct
	}

	var list []struct {
		Emoji string `json:"emoji"`
		Count int64  `json:"count"`
	}
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, entry := range list {
			if entry.Emoji != "" {
				out[entry.Emoji] += entry.Count
			}
		}
	}
	return out
}
