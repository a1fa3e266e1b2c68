package provider

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"
)

// HashStatus classifies a stored data_hash against the record it sits on.
type HashStatus int

const (
	HashMatch HashStatus = iota
	HashMismatch
	HashMissing
	// HashUnverifiable means the stored value cannot be recomputed: it is
	// not a SHA-256 digest, or the record holds numbers whose original
	// serialisation is lost.
	HashUnverifiable
)

func (s HashStatus) String() string {
	switch s {
	case HashMatch:
		return "match"
	case HashMismatch:
		return "mismatch"
	case HashMissing:
		return "missing"
	case HashUnverifiable:
		return "unverifiable"
	default:
		return "unknown"
	}
}

// HashCheck is the outcome of comparing a record's stored content hash with
// a freshly computed one.
type HashCheck struct {
	NPI      int64
	Stored   string
	Computed string
	Status   HashStatus
}

// Missing reports whether the record carried no stored hash.
func (h HashCheck) Missing() bool { return h.Status == HashMissing }

// Match reports whether the stored hash equals a recomputed one.
func (h HashCheck) Match() bool { return h.Status == HashMatch }

// The registry loader hashes every record twice. The mapper hashes the
// record with doubled address nesting and no meta_info. The store then
// flattens the addresses and hashes again with meta_info reduced to the
// mapper's data_hash, and that second value is what gets stored.

// DataHash computes the data_hash the loader stores for a raw provider
// record. "_id" and meta_info are ignored; addresses may be nested either
// way.
func DataHash(raw []byte) (string, error) {
	record, err := decodeRecord(raw)
	if err != nil {
		return "", err
	}
	mapped, err := mapperHash(record)
	if err != nil {
		return "", err
	}
	return storeHash(record, map[string]any{"data_hash": mapped})
}

// VerifyHash recomputes the hash of raw and compares it with the stored
// meta_info.data_hash. Records stored straight from the mapper, or stored
// without a prior hash, are accepted as well.
func VerifyHash(raw []byte) (HashCheck, error) {
	var head struct {
		Identification struct {
			NPI FlexInt `json:"npi"`
		} `json:"provider_identification"`
		MetaInfo struct {
			DataHash *string `json:"data_hash"`
		} `json:"meta_info"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return HashCheck{}, fmt.Errorf("parsing provider record: %w", err)
	}
	check := HashCheck{NPI: head.Identification.NPI.Int64()}
	if head.MetaInfo.DataHash != nil {
		check.Stored = *head.MetaInfo.DataHash
	}
	if check.Stored == "" {
		check.Status = HashMissing
		return check, nil
	}
	if !isDigest(check.Stored) {
		check.Status = HashUnverifiable
		return check, nil
	}

	record, err := decodeRecord(raw)
	if err != nil {
		return HashCheck{}, err
	}
	if !reproducible(record) {
		check.Status = HashUnverifiable
		return check, nil
	}

	mapped, err := mapperHash(record)
	if err != nil {
		return HashCheck{}, err
	}
	stored, err := storeHash(record, map[string]any{"data_hash": mapped})
	if err != nil {
		return HashCheck{}, err
	}
	unhashed, err := storeHash(record, map[string]any{})
	if err != nil {
		return HashCheck{}, err
	}
	check.Computed = stored

	switch check.Stored {
	case stored, unhashed, mapped:
		check.Status = HashMatch
	default:
		check.Status = HashMismatch
	}
	return check, nil
}

func decodeRecord(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var record map[string]any
	if err := dec.Decode(&record); err != nil {
		return nil, fmt.Errorf("parsing provider record: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("parsing provider record: not an object")
	}
	return record, nil
}

var addressKinds = []string{"mailing_address", "practice_location"}

// mapperHash hashes the record as the mapper built it: no "_id", no
// meta_info and {"mailing_address": {"mailing_address": {...}}} nesting.
func mapperHash(record map[string]any) (string, error) {
	m := shallowCopy(record)
	delete(m, "_id")
	delete(m, "meta_info")
	if addrs, ok := m["business_addresses"].(map[string]any); ok {
		nested := shallowCopy(addrs)
		for _, kind := range addressKinds {
			a, ok := nested[kind].(map[string]any)
			if !ok {
				continue
			}
			if _, already := a[kind]; !already {
				nested[kind] = map[string]any{kind: a}
			}
		}
		m["business_addresses"] = nested
	}
	return hashOf(m)
}

// storeHash hashes the record as the store saw it: no "_id", flattened
// addresses and the given meta_info.
func storeHash(record map[string]any, meta map[string]any) (string, error) {
	m := shallowCopy(record)
	delete(m, "_id")
	if old, ok := record["meta_info"].(map[string]any); ok {
		merged := shallowCopy(old)
		delete(merged, "last_update")
		delete(merged, "data_hash")
		for k, v := range meta {
			merged[k] = v
		}
		meta = merged
	}
	m["meta_info"] = meta
	if addrs, ok := m["business_addresses"].(map[string]any); ok {
		flat := shallowCopy(addrs)
		for _, kind := range addressKinds {
			if a, ok := flat[kind].(map[string]any); ok {
				if inner, ok := a[kind]; ok {
					flat[kind] = inner
				}
			}
		}
		m["business_addresses"] = flat
	}
	return hashOf(m)
}

func hashOf(v any) (string, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

func shallowCopy(m map[string]any) map[string]any {
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func isDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// reproducible reports whether every number in v is written the way the
// loader writes it. Exponent literals are not.
func reproducible(v any) bool {
	switch t := v.(type) {
	case json.Number:
		return !strings.ContainsAny(string(t), "eE")
	case []any:
		for _, e := range t {
			if !reproducible(e) {
				return false
			}
		}
	case map[string]any:
		for _, e := range t {
			if !reproducible(e) {
				return false
			}
		}
	}
	return true
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(t.String())
	case string:
		writeASCIIString(buf, t)
	case []any:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := writeCanonical(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteString(", ")
			}
			writeASCIIString(buf, k)
			buf.WriteString(": ")
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported JSON value %T", v)
	}
	return nil
}

const hexDigits = "0123456789abcdef"

// writeASCIIString quotes s, escaping everything outside printable ASCII.
func writeASCIIString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r >= 0x20 && r <= 0x7e:
			buf.WriteRune(r)
		case r > 0xffff:
			r1, r2 := utf16.EncodeRune(r)
			writeUnicodeEscape(buf, r1)
			writeUnicodeEscape(buf, r2)
		default:
			writeUnicodeEscape(buf, r)
		}
	}
	buf.WriteByte('"')
}

func writeUnicodeEscape(buf *bytes.Buffer, r rune) {
	buf.WriteString(`\u`)
	buf.WriteByte(hexDigits[(r>>12)&0xf])
	buf.WriteByte(hexDigits[(r>>8)&0xf])
	buf.WriteByte(hexDigits[(r>>4)&0xf])
	buf.WriteByte(hexDigits[r&0xf])
}
