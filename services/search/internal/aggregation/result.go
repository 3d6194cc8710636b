package aggregation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Result is one decoded aggregation: single-bucket aggregations carry a
// document count, multi-bucket aggregations carry Buckets. Sub-aggregations
// are keyed by name. All accessors are nil-safe so a missing branch reads as
// an empty one.
type Result struct {
	DocCount int64
	Buckets  []*Bucket
	Aggs     map[string]*Result
}

// Bucket is one bucket of a multi-bucket aggregation.
type Bucket struct {
	Key      string
	DocCount int64
	Aggs     map[string]*Result
}

// Sub returns the named sub-aggregation, or nil.
func (r *Result) Sub(name string) *Result {
	if r == nil {
		return nil
	}
	return r.Aggs[name]
}

// BucketList returns the buckets, or nil.
func (r *Result) BucketList() []*Bucket {
	if r == nil {
		return nil
	}
	return r.Buckets
}

// First returns the first bucket, or nil.
func (r *Result) First() *Bucket {
	if r == nil || len(r.Buckets) == 0 {
		return nil
	}
	return r.Buckets[0]
}

// Find returns the first bucket whose key equals key ignoring case, or nil.
func (r *Result) Find(key string) *Bucket {
	for _, b := range r.BucketList() {
		if strings.EqualFold(b.Key, key) {
			return b
		}
	}
	return nil
}

// Sub returns the named sub-aggregation of the bucket, or nil.
func (b *Bucket) Sub(name string) *Result {
	if b == nil {
		return nil
	}
	return b.Aggs[name]
}

// Results is the top-level aggregation map of a response.
type Results map[string]*Result

// Get returns the named top-level aggregation, or nil.
func (r Results) Get(name string) *Result {
	if r == nil {
		return nil
	}
	return r[name]
}

// UnmarshalJSON decodes an aggregation body. Unknown scalar fields such as
// sum_other_doc_count are ignored; every object field is read as a
// sub-aggregation.
func (r *Result) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode aggregation: %w", err)
	}
	for name, raw := range fields {
		switch name {
		case "doc_count":
			if err := json.Unmarshal(raw, &r.DocCount); err != nil {
				return fmt.Errorf("decode aggregation doc_count: %w", err)
			}
		case "buckets":
			if err := json.Unmarshal(raw, &r.Buckets); err != nil {
				return fmt.Errorf("decode aggregation buckets: %w", err)
			}
		case "meta":
		default:
			sub, err := decodeSub(raw)
			if err != nil {
				return fmt.Errorf("decode aggregation %q: %w", name, err)
			}
			if sub != nil {
				if r.Aggs == nil {
					r.Aggs = make(map[string]*Result)
				}
				r.Aggs[name] = sub
			}
		}
	}
	return nil
}

// UnmarshalJSON decodes a bucket. Numeric keys keep their literal text.
func (b *Bucket) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("decode bucket: %w", err)
	}
	for name, raw := range fields {
		switch name {
		case "key":
			b.Key = decodeKey(raw)
		case "doc_count":
			if err := json.Unmarshal(raw, &b.DocCount); err != nil {
				return fmt.Errorf("decode bucket doc_count: %w", err)
			}
		case "key_as_string":
		default:
			sub, err := decodeSub(raw)
			if err != nil {
				return fmt.Errorf("decode bucket aggregation %q: %w", name, err)
			}
			if sub != nil {
				if b.Aggs == nil {
					b.Aggs = make(map[string]*Result)
				}
				b.Aggs[name] = sub
			}
		}
	}
	return nil
}

func decodeSub(raw json.RawMessage) (*Result, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil
	}
	var sub Result
	if err := json.Unmarshal(trimmed, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func decodeKey(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
