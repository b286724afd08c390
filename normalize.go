package formstate

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// ISOTimestampLayout is the layout date inputs are stored with.
const ISOTimestampLayout = "2006-01-02T15:04:05.000Z"

const dateOnlyLayout = "2006-01-02"

var dateLayouts = []string{
	dateOnlyLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

var errNotANumber = errors.New("not a number")

// Normalize converts a raw change notification into the value stored for the
// field. It never consults the validator.
func Normalize(change Change) (any, error) {
	switch change.Kind {
	case KindFile:
		switch len(change.Files) {
		case 0:
			return nil, nil
		case 1:
			return change.Files[0], nil
		default:
			return append([]File(nil), change.Files...), nil
		}
	case KindCheckbox:
		return change.Checked, nil
	case KindDate:
		return normalizeDate(change.Value), nil
	case KindNumber:
		return normalizeNumber(change)
	default:
		return change.Value, nil
	}
}

// normalizeDate stores a canonical timestamp for parseable input and leaves
// malformed text for the validator to judge.
func normalizeDate(raw string) any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		return parsed.UTC().Format(ISOTimestampLayout)
	}
	return raw
}

func normalizeNumber(change Change) (any, error) {
	raw := strings.TrimSpace(change.Value)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err == nil && (math.IsNaN(value) || math.IsInf(value, 0)) {
		err = errNotANumber
	}
	if err != nil {
		return nil, &NormalizationError{
			Field: change.Name,
			Kind:  KindNumber,
			Raw:   change.Value,
			Err:   err,
		}
	}
	return value, nil
}
