package relay

import (
	"encoding/json"
	"strings"
)

// Filter selects event types for a stream client. An empty filter passes
// everything; world_reset always passes so clients can resync after a load.
type Filter map[string]bool

// ParseFilter reads a comma separated list such as "tile_changed,job_created".
func ParseFilter(csv string) Filter {
	f := Filter{}
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			f[s] = true
		}
	}
	return f
}

// Match returns the payload's event type and whether the filter lets it
// through. Payloads that are not envelopes are rejected.
func (f Filter) Match(payload string) (string, bool) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(payload), &head); err != nil || head.Type == "" {
		return "", false
	}
	if len(f) == 0 || head.Type == TypeWorldReset {
		return head.Type, true
	}
	return head.Type, f[head.Type]
}
