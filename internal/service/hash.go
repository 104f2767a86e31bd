package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"structure-service/internal/domain"
)

// ContentHash renders fields into a canonical, key-sorted, type-tagged text
// form and returns its SHA-256 as lowercase hex. The digest is independent
// of map iteration order and of pin insertion order.
func ContentHash(fields map[string]interface{}) string {
	var b strings.Builder
	writeCanonical(&b, fields)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// moduleHashFields is the versionable subset of a module: content plus the
// pin lists capturing its composition.
func moduleHashFields(name, description string, childrenPins, featurePins []domain.Pin) map[string]interface{} {
	return map[string]interface{}{
		"name":          name,
		"description":   description,
		"children_pins": childrenPins,
		"feature_pins":  featurePins,
	}
}

func featureHashFields(name, description, priority, status string) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"description": description,
		"priority":    priority,
		"status":      status,
	}
}

func writeCanonical(b *strings.Builder, v interface{}) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case string:
		if t == "" {
			b.WriteString("null")
			return
		}
		b.WriteString("s:")
		b.WriteString(strconv.Quote(t))
	case bool:
		b.WriteString("b:")
		b.WriteString(strconv.FormatBool(t))
	case int:
		b.WriteString("i:")
		b.WriteString(strconv.Itoa(t))
	case int64:
		b.WriteString("i:")
		b.WriteString(strconv.FormatInt(t, 10))
	case float64:
		b.WriteString("f:")
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case []domain.Pin:
		// Sorted by child id so the digest does not depend on the order the
		// pins were collected in.
		pins := make([]domain.Pin, len(t))
		copy(pins, t)
		sort.Slice(pins, func(i, j int) bool { return pins[i].ChildID < pins[j].ChildID })
		b.WriteString("[")
		for i, p := range pins {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString("{child=")
			b.WriteString(strconv.Quote(p.ChildID))
			b.WriteString(";version=")
			b.WriteString(strconv.Itoa(p.VersionNumber))
			b.WriteString("}")
		}
		b.WriteString("]")
	case []interface{}:
		b.WriteString("[")
		for i, e := range t {
			if i > 0 {
				b.WriteString(",")
			}
			writeCanonical(b, e)
		}
		b.WriteString("]")
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("{")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(";")
			}
			b.WriteString(k)
			b.WriteString("=")
			writeCanonical(b, t[k])
		}
		b.WriteString("}")
	case *string:
		if t == nil {
			b.WriteString("null")
			return
		}
		writeCanonical(b, *t)
	default:
		// Unsupported shapes normalize to a deterministic textual form
		// rather than failing the hash.
		b.WriteString("v:")
		b.WriteString(fmt.Sprintf("%v", t))
	}
}
