// Package canon implements the canonical representation of the ad-hoc,
// mixed-kind payload trees the RPC gateway exchanges with upstream. Both
// cache-key derivation and payload validation share this representation so
// the two never disagree about what a given payload "is".
package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Value is a tagged union over the kinds an upstream payload element can
// take: null, bool, int, float, string, list, map. It is built from decoded
// JSON (via Wrap) rather than reflected over arbitrary Go types, since every
// payload on the wire arrives as JSON.
type Value struct {
	kind kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	obj  map[string]Value
}

type kind int

const (
	kindNull kind = iota
	kindBool
	kindInt
	kindFloat
	kindString
	kindList
	kindMap
)

// Wrap converts a value produced by encoding/json.Unmarshal (into `any`)
// into a canon.Value. Numbers decode as float64 per encoding/json's default
// behavior; Wrap narrows a float64 with no fractional part to kindInt so
// that `5` and `5.0` canonicalize identically, per spec's "normalize numeric
// widths" requirement.
func Wrap(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{kind: kindNull}
	case bool:
		return Value{kind: kindBool, b: t}
	case float64:
		if t == float64(int64(t)) {
			return Value{kind: kindInt, i: int64(t)}
		}
		return Value{kind: kindFloat, f: t}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Value{kind: kindInt, i: i}
		}
		f, _ := t.Float64()
		return Value{kind: kindFloat, f: f}
	case string:
		return Value{kind: kindString, s: t}
	case []any:
		list := make([]Value, len(t))
		for i, e := range t {
			list[i] = Wrap(e)
		}
		return Value{kind: kindList, list: list}
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, e := range t {
			obj[k] = Wrap(e)
		}
		return Value{kind: kindMap, obj: obj}
	default:
		// Unreachable for payloads decoded via encoding/json, kept as a
		// defensive fallback so Wrap never panics on an unexpected type.
		return Value{kind: kindString, s: fmt.Sprintf("%v", t)}
	}
}

// ParseJSON decodes raw JSON bytes into a canonical Value.
func ParseJSON(raw []byte) (Value, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Value{}, fmt.Errorf("canon: decoding payload: %w", err)
	}
	return Wrap(v), nil
}

// Canonical renders the value as a canonical JSON byte string: object keys
// sorted lexicographically at every nesting level, numbers rendered with a
// single consistent format. Two values that are semantically identical
// produce byte-identical output regardless of original key order.
func (v Value) Canonical() []byte {
	var buf []byte
	buf = v.appendCanonical(buf)
	return buf
}

func (v Value) appendCanonical(buf []byte) []byte {
	switch v.kind {
	case kindNull:
		return append(buf, "null"...)
	case kindBool:
		if v.b {
			return append(buf, "true"...)
		}
		return append(buf, "false"...)
	case kindInt:
		return append(buf, []byte(fmt.Sprintf("%d", v.i))...)
	case kindFloat:
		return append(buf, []byte(fmt.Sprintf("%g", v.f))...)
	case kindString:
		enc, _ := json.Marshal(v.s)
		return append(buf, enc...)
	case kindList:
		buf = append(buf, '[')
		for i, e := range v.list {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = e.appendCanonical(buf)
		}
		return append(buf, ']')
	case kindMap:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			enc, _ := json.Marshal(k)
			buf = append(buf, enc...)
			buf = append(buf, ':')
			buf = v.obj[k].appendCanonical(buf)
		}
		return append(buf, '}')
	default:
		return buf
	}
}

// Digest returns the hex-encoded SHA-256 digest of the value's canonical
// form, suitable as the params component of a cache key.
func (v Value) Digest() string {
	sum := sha256.Sum256(v.Canonical())
	return hex.EncodeToString(sum[:])
}

// CacheKey builds the Read-Through Cache key for (tenant, op, model,
// payload) per spec §3: hash(tenant ‖ operation ‖ model ‖ canonical-payload).
func CacheKey(tenantID, op, model string, payload Value) string {
	h := sha256.New()
	h.Write([]byte(tenantID))
	h.Write([]byte{0})
	h.Write([]byte(op))
	h.Write([]byte{0})
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write(payload.Canonical())
	return hex.EncodeToString(h.Sum(nil))
}
