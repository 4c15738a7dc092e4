// Package observ provides the bot's JSON-line event log and in-process
// metrics registry. Every cycle phase emits one event (cycle_started,
// news_fetched, regime_classified, portfolio_snapshot, order_placed,
// cycle_finished) so a run can be reconstructed from stdout alone.
package observ

import (
	"encoding/json"
	"fmt"
	"time"
)

// Log writes one event line to stdout. The kv map is augmented with the
// event name and an RFC3339 timestamp; callers may pass nil.
func Log(event string, kv map[string]any) {
	if kv == nil {
		kv = map[string]any{}
	}
	kv["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	kv["event"] = event
	b, _ := json.Marshal(kv)
	fmt.Println(string(b))
}
