package hydrate

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// Context identifies the form a payload was submitted from.
type Context struct {
	FormID string
}

// PreHook lets callers mutate or normalise the payload before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the hydrated struct after decoding.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the default decoding when provided.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts submitted form values into strongly typed structs.
type Decoder[T any] struct {
	preHooks  []PreHook
	postHooks []PostHook[T]
	config    sonic.Config
	custom    CustomDecoder[T]
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithBlankAsNull decodes pre-fill blanks ("") as null so they leave numeric
// and time fields at their zero value instead of failing.
func WithBlankAsNull[T any]() DecoderOption[T] {
	return WithPreHook[T](BlankAsNull)
}

// WithUseNumber decodes numbers held in interface fields as json.Number.
func WithUseNumber[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.config.UseNumber = true
	}
}

// WithDisallowUnknownFields rejects values with no matching struct field.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.config.DisallowUnknownFields = true
	}
}

// WithCustomDecoder replaces the default decoding path.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts payload into T applying configured hooks. The payload is
// never mutated.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var zero T

	if payload == nil {
		return zero, fmt.Errorf("hydrate: payload is nil for form %q", ctx.FormID)
	}

	current := clonePayload(payload)

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for form %q failed: %w", ctx.FormID, err)
		}
		if next != nil {
			current = next
		}
	}

	var result T
	if d.custom != nil {
		decoded, err := d.custom(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: custom decoder for form %q failed: %w", ctx.FormID, err)
		}
		result = decoded
	} else {
		api := d.config.Froze()
		buffer, err := api.Marshal(current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: marshal payload for form %q: %w", ctx.FormID, err)
		}
		if err := api.Unmarshal(buffer, &result); err != nil {
			return zero, fmt.Errorf("hydrate: decode form %q: %w", ctx.FormID, err)
		}
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for form %q failed: %w", ctx.FormID, err)
		}
	}

	return result, nil
}

// BlankAsNull replaces whitespace-only strings with nil.
func BlankAsNull(_ Context, payload map[string]any) (map[string]any, error) {
	for key, value := range payload {
		if text, ok := value.(string); ok && strings.TrimSpace(text) == "" {
			payload[key] = nil
		}
	}
	return payload, nil
}

func clonePayload(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		out[key] = value
	}
	return out
}
