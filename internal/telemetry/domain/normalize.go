package telemetry

import (
	"encoding/json"
	"sort"
	"time"
)

// reserved snapshot keys that never become records.
var reservedKeys = map[string]bool{
	"id":   true,
	"type": true,
}

// Normalize decomposes one entity snapshot into flat records, one per
// observable attribute. Every record shares capturedAt so attributes from
// the same update stay time-aligned. Attribute payloads without an
// internal value field are skipped; that is policy, not an error, since
// bare scalars are indistinguishable from incidental non-observable
// fields. Pure; no side effects.
func Normalize(snapshot EntitySnapshot, capturedAt time.Time) []Record {
	if len(snapshot.Attributes) == 0 {
		return nil
	}

	keys := make([]string, 0, len(snapshot.Attributes))
	for key := range snapshot.Attributes {
		if reservedKeys[key] {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	records := make([]Record, 0, len(keys))
	for _, key := range keys {
		value, metadata, ok := decomposeAttribute(snapshot.Attributes[key])
		if !ok {
			continue
		}
		records = append(records, Record{
			Time:           capturedAt,
			EntityID:       snapshot.ID,
			EntityType:     snapshot.Type,
			AttributeName:  key,
			AttributeValue: value,
			Metadata:       metadata,
		})
	}
	return records
}

// decomposeAttribute extracts the value and metadata fields from an
// NGSI-shaped payload. ok is false when the payload is not a JSON object
// or has no value field.
func decomposeAttribute(payload json.RawMessage) (value, metadata json.RawMessage, ok bool) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, nil, false
	}
	value, ok = doc["value"]
	if !ok {
		return nil, nil, false
	}
	return value, doc["metadata"], true
}
