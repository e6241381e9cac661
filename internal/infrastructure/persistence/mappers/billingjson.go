package mappers

import (
	"encoding/json"

	"gorm.io/datatypes"
)

func mapToJSON(m map[string]any) datatypes.JSON {
	if len(m) == 0 {
		return datatypes.JSON("{}")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}

func jsonToMap(j datatypes.JSON) map[string]any {
	out := map[string]any{}
	if len(j) == 0 {
		return out
	}
	_ = json.Unmarshal(j, &out)
	return out
}
