package formstate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/goliatone/go-formstate/internal/hydrate"
	"github.com/goliatone/go-formstate/pkg/activity"
)

// submitActions exposes the controller capabilities a submit callback may
// use.
type submitActions struct {
	ctx context.Context
	c   *Controller
}

func (a submitActions) ResetForm() {
	a.c.resetForm(a.ctx)
}

func (a submitActions) SetSubmitting(submitting bool) {
	a.c.setSubmitting(submitting)
}

// Submit runs one submission attempt: validate every field, store the errors,
// touch every field and, when the form is valid, invoke the submit callback
// with the current values. The submitting flag is cleared on every exit path,
// including a panicking callback.
//
// Submit returns ErrSubmitInProgress while another attempt runs, even when
// the running callback cleared the submitting flag through its actions,
// ErrInvalidForm when validation reports errors, a *ValidatorError when the
// validator crashed, and otherwise whatever the callback returned.
func (c *Controller) Submit(ctx context.Context) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if c.submitActive {
		c.mu.Unlock()
		return ErrSubmitInProgress
	}
	c.submitActive = true
	c.state.submitting = true
	c.mu.Unlock()
	c.publish()
	defer c.endSubmit()

	errs, validateErr := c.ValidateForm(ctx)
	c.touchAllFields()

	input := c.eventInput()
	input.Fields = c.Fields()
	switch {
	case validateErr != nil:
		input.Err = validateErr
		c.emit(ctx, activity.BuildFormSubmitFailedEvent(input))
		return validateErr
	case len(errs) > 0:
		input.Errors = errs
		c.logger.Info("submit rejected", slog.Int("errors", len(errs)))
		c.emit(ctx, activity.BuildFormSubmitRejectedEvent(input))
		return ErrInvalidForm
	}

	if c.onSubmit != nil {
		if err := c.onSubmit(ctx, c.Values(), submitActions{ctx: ctx, c: c}); err != nil {
			c.logger.Warn("submit callback failed", slog.String("error", err.Error()))
			input.Err = err
			c.emit(ctx, activity.BuildFormSubmitFailedEvent(input))
			return err
		}
	}
	c.logger.Info("form submitted")
	c.emit(ctx, activity.BuildFormSubmittedEvent(input))
	return nil
}

// endSubmit releases the re-entry guard and clears the submitting flag.
func (c *Controller) endSubmit() {
	c.mu.Lock()
	c.submitActive = false
	changed := c.state.submitting
	c.state.submitting = false
	c.mu.Unlock()
	if changed {
		c.publish()
	}
}

func (c *Controller) setSubmitting(submitting bool) {
	c.mu.Lock()
	changed := c.state.submitting != submitting
	c.state.submitting = submitting
	c.mu.Unlock()
	if changed {
		c.publish()
	}
}

func (c *Controller) touchAllFields() {
	c.mu.Lock()
	c.state.touched = touchAll(c.fields)
	c.mu.Unlock()
	c.publish()
}

// SubmitAsOption configures how SubmitAs decodes values.
type SubmitAsOption[T any] func(*[]hydrate.DecoderOption[T])

// RejectUnknownFields fails decoding when values hold a field T does not
// declare.
func RejectUnknownFields[T any]() SubmitAsOption[T] {
	return func(opts *[]hydrate.DecoderOption[T]) {
		*opts = append(*opts, hydrate.WithDisallowUnknownFields[T]())
	}
}

// DecodeNumbersAsJSON decodes numbers held in interface fields of T as
// json.Number instead of float64.
func DecodeNumbersAsJSON[T any]() SubmitAsOption[T] {
	return func(opts *[]hydrate.DecoderOption[T]) {
		*opts = append(*opts, hydrate.WithUseNumber[T]())
	}
}

// CheckDecoded runs check on the decoded form before the callback. A failing
// check aborts the submit like a decoding error.
func CheckDecoded[T any](check func(form T) error) SubmitAsOption[T] {
	return func(opts *[]hydrate.DecoderOption[T]) {
		if check == nil {
			return
		}
		*opts = append(*opts, hydrate.WithPostHook[T](func(_ hydrate.Context, form *T) error {
			return check(*form)
		}))
	}
}

// DecodeWith replaces JSON decoding with decode. Blank values still reach it
// as nil.
func DecodeWith[T any](decode func(values Values) (T, error)) SubmitAsOption[T] {
	return func(opts *[]hydrate.DecoderOption[T]) {
		if decode == nil {
			return
		}
		*opts = append(*opts, hydrate.WithCustomDecoder[T](func(_ hydrate.Context, payload map[string]any) (T, error) {
			return decode(Values(payload))
		}))
	}
}

// SubmitAs adapts a callback taking a typed form to a SubmitFunc. Values are
// decoded into T through its json tags; blank strings decode as null so
// untouched numeric inputs leave zero values.
func SubmitAs[T any](fn func(ctx context.Context, form T, actions SubmitActions) error, opts ...SubmitAsOption[T]) SubmitFunc {
	decoderOpts := []hydrate.DecoderOption[T]{hydrate.WithBlankAsNull[T]()}
	for _, opt := range opts {
		if opt != nil {
			opt(&decoderOpts)
		}
	}
	decoder := hydrate.NewDecoder[T](decoderOpts...)
	return func(ctx context.Context, values Values, actions SubmitActions) error {
		form, err := decoder.Decode(hydrate.Context{FormID: formIDFrom(actions)}, values)
		if err != nil {
			return errors.Join(ErrInvalidInput, err)
		}
		return fn(ctx, form, actions)
	}
}

func formIDFrom(actions SubmitActions) string {
	if a, ok := actions.(submitActions); ok && a.c != nil {
		return a.c.formID
	}
	return ""
}
