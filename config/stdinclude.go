package config

import "fmt"

// standardLibrary is the built-in resolver StandardLibrary returns, preloaded
// with the vocabulary snippets barectf effective configurations commonly
// pull in via $include.
type standardLibrary struct {
	fragments map[string]map[string]interface{}
}

// StandardLibrary returns an IncludeResolver preloaded with the "stdint",
// "stdreal", "stdmisc" and "log-level" vocabulary fragments.
func StandardLibrary() IncludeResolver {
	return &standardLibrary{
		fragments: map[string]map[string]interface{}{
			"stdint":   stdintFragment(),
			"stdreal":  stdrealFragment(),
			"stdmisc":  stdmiscFragment(),
			"log-level": logLevelFragment(),
		},
	}
}

func (s *standardLibrary) Resolve(name string) (map[string]interface{}, error) {
	frag, ok := s.fragments[name]
	if !ok {
		return nil, fmt.Errorf("no standard vocabulary fragment named %q", name)
	}
	return frag, nil
}

// stdintFragment defines the common fixed-width integer field-type aliases,
// available under $field-type-aliases in any document that includes "stdint".
func stdintFragment() map[string]interface{} {
	return map[string]interface{}{
		"$field-type-aliases": map[string]interface{}{
			"uint8-field":  "uint8",
			"uint16-field": "uint16",
			"uint32-field": "uint32",
			"uint64-field": "uint64",
			"int8-field":   "int8",
			"int16-field":  "int16",
			"int32-field":  "int32",
			"int64-field":  "int64",
		},
	}
}

// stdrealFragment defines the common float field-type aliases.
func stdrealFragment() map[string]interface{} {
	return map[string]interface{}{
		"$field-type-aliases": map[string]interface{}{
			"float32-field": "float32",
			"float64-field": "float64",
		},
	}
}

// stdmiscFragment defines miscellaneous aliases used across sample traces,
// such as a byte-packed boolean encoded as a single unsigned byte.
func stdmiscFragment() map[string]interface{} {
	return map[string]interface{}{
		"$field-type-aliases": map[string]interface{}{
			"bool-field": "uint8",
		},
	}
}

// logLevelFragment restores the syslog-style severity enum a barectf trace's
// event headers commonly carry, dropped by the distillation but present in
// the original implementation's LogLevel type.
func logLevelFragment() map[string]interface{} {
	return map[string]interface{}{
		"$field-type-aliases": map[string]interface{}{
			"log-level-field": map[string]interface{}{
				"class":  "enum",
				"size":   8,
				"signed": false,
				"mappings": map[string]interface{}{
					"EMERG":   0,
					"ALERT":   1,
					"CRIT":    2,
					"ERR":     3,
					"WARNING": 4,
					"NOTICE":  5,
					"INFO":    6,
					"DEBUG":   7,
				},
			},
		},
	}
}
