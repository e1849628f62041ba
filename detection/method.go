// Package detection is the boundary to the external vital-signs Detection
// Service: method identifiers, the per-face result model, a closed error-kind
// taxonomy and a subprocess-backed Detector.
package detection

import (
	"fmt"
	"strings"
)

// Method is a named algorithm variant offered by the Detection Service.
type Method string

const (
	MethodVitalLens Method = "VITALLENS"
	MethodPOS       Method = "POS"
	MethodCHROM     Method = "CHROM"
	MethodG         Method = "G"
)

// methodOrder is the order methods are presented in the UI.
var methodOrder = []Method{MethodVitalLens, MethodPOS, MethodCHROM, MethodG}

var methodLabels = map[Method]string{
	MethodVitalLens: "VITALLENS (需要 API Key)",
	MethodPOS:       "POS (免費)",
	MethodCHROM:     "CHROM (免費)",
	MethodG:         "G (免費)",
}

// AllMethods returns every supported method in display order.
func AllMethods() []Method {
	out := make([]Method, len(methodOrder))
	copy(out, methodOrder)
	return out
}

// Labels returns the display labels in display order.
func Labels() []string {
	out := make([]string, 0, len(methodOrder))
	for _, m := range methodOrder {
		out = append(out, m.Label())
	}
	return out
}

// Label returns the human-facing label, e.g. "POS (免費)".
func (m Method) Label() string {
	if label, ok := methodLabels[m]; ok {
		return label
	}
	return string(m)
}

// RequiresCredential reports whether the method needs an API key.
func (m Method) RequiresCredential() bool {
	return m == MethodVitalLens
}

func (m Method) String() string {
	return string(m)
}

// ParseMethod resolves a user-supplied identifier. Accepted forms, in order:
// the exact display label, the label compared case-insensitively, and the
// bare method name compared case-insensitively.
func ParseMethod(name string) (Method, error) {
	normalized := strings.TrimSpace(name)
	if normalized == "" {
		return "", fmt.Errorf("未知的檢測方法: 空值")
	}

	for _, m := range methodOrder {
		if methodLabels[m] == normalized {
			return m, nil
		}
	}

	upper := strings.ToUpper(normalized)
	for _, m := range methodOrder {
		if strings.ToUpper(methodLabels[m]) == upper {
			return m, nil
		}
	}

	for _, m := range methodOrder {
		if string(m) == upper {
			return m, nil
		}
	}

	return "", fmt.Errorf("未知的檢測方法: %s", name)
}
