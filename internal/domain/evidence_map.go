package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// EvidenceMap is the free-form supporting data attached to a suspicion
// finding, stored as a jsonb column.
type EvidenceMap map[string]any

func (m EvidenceMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (m *EvidenceMap) Scan(value any) error {
	if value == nil {
		*m = EvidenceMap{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("evidence map: unsupported scan type %T", value)
	}

	if len(data) == 0 {
		*m = EvidenceMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

func (m EvidenceMap) GormDataType() string {
	return "jsonb"
}

// Clone returns a shallow copy so callers can mutate without aliasing.
func (m EvidenceMap) Clone() EvidenceMap {
	if m == nil {
		return nil
	}
	out := make(EvidenceMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
