package storage

import (
	"bytes"
	"encoding/json"
	"reflect"
	"unicode/utf16"
)

// Serialize encodes v as compact JSON. HTML escaping is off so the output
// matches what a browser JSON.stringify produces for the same structure.
func Serialize(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Checksum is a djb2-style XOR hash over the UTF-16 code units of s, kept to
// 32 bits. It only detects accidental corruption.
func Checksum(s []byte) uint32 {
	h := uint32(5381)
	for _, unit := range utf16.Encode([]rune(string(s))) {
		h = (h * 33) ^ uint32(unit)
	}
	return h
}

// compactJSON strips insignificant whitespace without touching key order or string escapes
func compactJSON(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DeepEqual reports whether two JSON documents decode to structurally equal
// values. Key order and whitespace are ignored. Invalid JSON never equals anything.
func DeepEqual(a, b []byte) bool {
	var va, vb any
	if err := json.Unmarshal(a, &va); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &vb); err != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

// equalValues compares two Go values through their JSON form
func equalValues(a, b any) bool {
	ea, err := Serialize(a)
	if err != nil {
		return false
	}
	eb, err := Serialize(b)
	if err != nil {
		return false
	}
	return DeepEqual(ea, eb)
}
