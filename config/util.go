package config

import (
	"fmt"

	"github.com/auxoncorp/barectf-parser/schema"
)

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func asUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case int:
		return uint64(n), true
	case int64:
		return uint64(n), true
	case uint64:
		return n, true
	case float64:
		return uint64(n), true
	default:
		return 0, false
	}
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// checkKnownKeys rejects any key in m that isn't in allowed, reporting the
// first one found as an unsupported feature - barectf's original effective
// configuration format rejects unknown $features entries at deserialization
// rather than silently ignoring them.
func checkKnownKeys(path string, m map[string]interface{}, allowed map[string]bool) error {
	for k := range m {
		if !allowed[k] {
			return errAt(path+"."+k, ErrUnsupportedFeature, fmt.Errorf("unrecognized feature %q", k))
		}
	}
	return nil
}

func parseByteOrder(s string) (schema.ByteOrder, error) {
	switch s {
	case "le", "little-endian":
		return schema.LittleEndian, nil
	case "be", "big-endian":
		return schema.BigEndian, nil
	default:
		return schema.LittleEndian, fmt.Errorf("unknown byte order %q", s)
	}
}
