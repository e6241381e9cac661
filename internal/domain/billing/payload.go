package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// LegacyPayloadKey holds an existing provider payload that was not a JSON object.
const LegacyPayloadKey = "legacy"

// MergePayload shallow-merges patch into the JSON object in existing.
// Keys from patch win. A non-object existing value (a bare string, array or
// unparseable text) is kept under LegacyPayloadKey instead of being dropped.
func MergePayload(existing []byte, patch map[string]any) ([]byte, error) {
	merged := make(map[string]any, len(patch)+1)

	trimmed := bytes.TrimSpace(existing)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err == nil && obj != nil {
			merged = obj
		} else {
			var legacy any
			if json.Unmarshal(trimmed, &legacy) == nil {
				merged[LegacyPayloadKey] = legacy
			} else {
				merged[LegacyPayloadKey] = string(trimmed)
			}
		}
	}

	for k, v := range patch {
		merged[k] = v
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to encode provider payload: %w", err)
	}
	return out, nil
}
