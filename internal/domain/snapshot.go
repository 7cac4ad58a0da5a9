package domain

import (
	"reflect"
	"time"

	"github.com/tidwall/gjson"
)

// Snapshot is one successfully polled document together with the indicator
// states derived from it.
type Snapshot struct {
	Timestamp time.Time
	Endpoint  string
	Data      gjson.Result
	States    map[string]string
}

// Changed returns true if *cur* differs from *prev*. Top-level members named
// in ignore (counters such as uptime that move on every poll) and the
// Timestamp are not compared. Members are compared by their raw JSON text.
func Changed(prev, cur *Snapshot, ignore []string) bool {
	if prev == nil && cur == nil {
		return false
	}
	if prev == nil || cur == nil {
		return true
	}
	if !reflect.DeepEqual(prev.States, cur.States) {
		return true
	}
	return !reflect.DeepEqual(members(prev.Data, ignore), members(cur.Data, ignore))
}

func members(doc gjson.Result, ignore []string) map[string]string {
	skip := make(map[string]struct{}, len(ignore))
	for _, k := range ignore {
		skip[k] = struct{}{}
	}

	out := map[string]string{}
	if !doc.IsObject() {
		out[""] = doc.Raw
		return out
	}
	doc.ForEach(func(key, value gjson.Result) bool {
		if _, ok := skip[key.String()]; !ok {
			out[key.String()] = value.Raw
		}
		return true
	})
	return out
}
