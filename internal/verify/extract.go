package verify

import (
	"encoding/json"
	"strconv"
	"strings"

	simdjson "github.com/minio/simdjson-go"

	"github.com/gyeh/npi-directory/internal/provider"
)

// keyFields are the parts of a record the scanner needs without decoding
// the whole document.
type keyFields struct {
	npi  int64
	hash string
}

// extractSimd reads the NPI and stored hash with simdjson. NPIs stored as
// numeric strings are accepted.
func (s *scanner) extractSimd(line []byte) (keyFields, error) {
	var (
		key keyFields
		err error
	)
	s.pj, err = simdjson.Parse(line, s.pj)
	if err != nil {
		return key, err
	}

	s.pj.ForEach(func(i simdjson.Iter) error {
		if e, ferr := i.FindElement(nil, "provider_identification", "npi"); ferr == nil {
			key.npi = simdInt(e.Iter)
		}
		if e, ferr := i.FindElement(nil, "meta_info", "data_hash"); ferr == nil {
			key.hash, _ = e.Iter.String()
		}
		return nil
	})
	return key, nil
}

func simdInt(it simdjson.Iter) int64 {
	switch it.Type() {
	case simdjson.TypeInt, simdjson.TypeUint, simdjson.TypeFloat:
		n, err := it.Int()
		if err != nil {
			return 0
		}
		return n
	case simdjson.TypeString:
		str, err := it.String()
		if err != nil {
			return 0
		}
		n, _ := strconv.ParseInt(strings.TrimSpace(str), 10, 64)
		return n
	default:
		return 0
	}
}

// extractStd is the encoding/json path for CPUs without AVX2.
func extractStd(line []byte) (keyFields, error) {
	var rec struct {
		ID struct {
			NPI provider.FlexInt `json:"npi"`
		} `json:"provider_identification"`
		Meta struct {
			DataHash *string `json:"data_hash"`
		} `json:"meta_info"`
	}
	if err := json.Unmarshal(line, &rec); err != nil {
		return keyFields{}, err
	}
	key := keyFields{npi: rec.ID.NPI.Int64()}
	if rec.Meta.DataHash != nil {
		key.hash = *rec.Meta.DataHash
	}
	return key, nil
}
