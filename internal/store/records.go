package store

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ashureev/whisperbridge/internal/domain"
)

// String returns the column as a string. Missing and null columns are "".
func (r Record) String(column string) string {
	switch v := r[column].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the column as an int64. Missing and null columns are 0.
func (r Record) Int(column string) (int64, error) {
	switch v := r[column].(type) {
	case nil:
		return 0, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		if v == "" {
			return 0, nil
		}
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("column %s: unsupported numeric type %T", column, v)
	}
}

// clone returns a shallow copy safe to hand out of a backend.
func (r Record) clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (r Record) matches(filters []Filter) bool {
	for _, f := range filters {
		if !valuesEqual(r[f.Column], f.Value) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func userFromRecord(r Record) (*domain.UserRecord, error) {
	count, err := r.Int("scroll_count")
	if err != nil {
		return nil, err
	}
	return &domain.UserRecord{
		ID:          r.String("id"),
		Name:        r.String("name"),
		Email:       r.String("email"),
		ScrollCount: count,
	}, nil
}

func scrollFromRecord(r Record) domain.Scroll {
	return domain.Scroll{Title: r.String("title"), Text: r.String("text")}
}

func reflectionFromRecord(r Record) domain.Reflection {
	return domain.Reflection{
		ScrollName: r.String("scroll_name"),
		ModelName:  r.String("model_name"),
		Text:       r.String("reflection_text"),
	}
}
