package formstate

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// InputProps are the props a presentation client binds to an input element.
type InputProps struct {
	Name    string
	Kind    Kind
	Value   string
	Checked bool
	// OnChange forwards a change for this input; Name and Kind are filled in
	// when left empty.
	OnChange func(ctx context.Context, change Change) error
	OnBlur   func(ctx context.Context) error
}

// FieldMeta exposes the field's error and touched flag.
type FieldMeta struct {
	Error   string
	Touched bool
}

// FieldProps is the projection of one field for a given input kind.
type FieldProps struct {
	Input InputProps
	Meta  FieldMeta
}

// FieldOption configures a field projection.
type FieldOption func(*fieldConfig)

type fieldConfig struct {
	optionValue *string
}

// WithOptionValue sets the value of a radio option; Checked reports whether
// it is the stored value.
func WithOptionValue(value string) FieldOption {
	return func(cfg *fieldConfig) {
		cfg.optionValue = &value
	}
}

// Field projects name for an input of kind. Unknown names project an empty
// field whose handlers report ErrUnknownField.
func (c *Controller) Field(name string, kind Kind, opts ...FieldOption) FieldProps {
	cfg := fieldConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	c.mu.Lock()
	stored := c.state.values[name]
	message := c.state.errors[name]
	touched := c.state.touched[name]
	c.mu.Unlock()

	input := InputProps{
		Name: name,
		Kind: kind,
		OnChange: func(ctx context.Context, change Change) error {
			if change.Name == "" {
				change.Name = name
			}
			if change.Kind == "" {
				change.Kind = kind
			}
			return c.OnChange(ctx, change)
		},
		OnBlur: func(ctx context.Context) error {
			return c.OnBlur(ctx, name)
		},
	}

	switch kind {
	case KindCheckbox:
		checked, _ := stored.(bool)
		input.Checked = checked
	case KindRadio:
		if cfg.optionValue != nil {
			input.Value = *cfg.optionValue
			input.Checked = displayValue(stored) == *cfg.optionValue && stored != nil
		} else {
			input.Value = displayValue(stored)
		}
	case KindFile:
	case KindDate:
		input.Value = dateDisplay(stored)
	default:
		input.Value = displayValue(stored)
	}

	return FieldProps{
		Input: input,
		Meta:  FieldMeta{Error: message, Touched: touched},
	}
}

// displayValue coerces a stored value to the text an input shows.
func displayValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case File:
		return v.Name
	default:
		return fmt.Sprint(v)
	}
}

// dateDisplay renders the YYYY-MM-DD portion of a stored date. Text that is
// not a timestamp is shown as entered.
func dateDisplay(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case time.Time:
		return v.UTC().Format(dateOnlyLayout)
	case string:
		for _, layout := range append([]string{ISOTimestampLayout}, dateLayouts...) {
			if parsed, err := time.Parse(layout, v); err == nil {
				return parsed.UTC().Format(dateOnlyLayout)
			}
		}
		return v
	default:
		return displayValue(v)
	}
}
