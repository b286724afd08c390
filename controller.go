package formstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/goliatone/go-formstate/pkg/activity"
	"github.com/google/uuid"
)

// Controller owns the state of one form: values, errors, touched flags and
// the submitting flag. It is safe for concurrent use. Validators and the
// submit callback are always called without the controller lock held.
type Controller struct {
	cfg       controllerConfig
	validator validatorAdapter
	onSubmit  SubmitFunc
	emitter   *activity.Emitter
	logger    *slog.Logger
	formID    string
	initial   Values
	fields    []string
	declared  map[string]struct{}

	mu    sync.Mutex
	state formState
	// submitActive guards Submit against re-entry. Unlike state.submitting it
	// is never cleared by ResetForm or SetSubmitting.
	submitActive bool
	epoch        uint64
	seq          map[string]uint64
	inflight     map[string]context.CancelFunc

	wg         sync.WaitGroup
	base       context.Context
	cancelBase context.CancelFunc

	subs       subscribers
	notifyMu   sync.Mutex
	dirty      bool
	delivering bool
}

// New creates a controller over the fields of initial. The field set is fixed
// for the controller's lifetime.
func New(initial Values, onSubmit SubmitFunc, opts ...Option) *Controller {
	cfg := applyOptions(opts)
	formID := cfg.formID
	if formID == "" {
		formID = uuid.NewString()
	}
	base, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:        cfg,
		validator:  newValidatorAdapter(cfg.validator),
		onSubmit:   onSubmit,
		emitter:    activity.NewEmitter(cfg.activityHooks, activity.Config{Enabled: cfg.activityEnabled, Channel: cfg.activityChannel}),
		logger:     cfg.logger.With(slog.String("form_id", formID)),
		formID:     formID,
		initial:    initial.Clone(),
		fields:     initial.Fields(),
		declared:   make(map[string]struct{}, len(initial)),
		state:      newFormState(initial),
		seq:        map[string]uint64{},
		inflight:   map[string]context.CancelFunc{},
		base:       base,
		cancelBase: cancel,
	}
	for _, name := range c.fields {
		c.declared[name] = struct{}{}
	}
	return c
}

// ID returns the form ID used as the object ID of activity events.
func (c *Controller) ID() string {
	return c.formID
}

// Fields returns the declared field names in sorted order.
func (c *Controller) Fields() []string {
	return append([]string(nil), c.fields...)
}

// State returns a detached snapshot of the whole state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.snapshot()
}

// Values returns a copy of the current values.
func (c *Controller) Values() Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.values.Clone()
}

// Value returns the stored value of name.
func (c *Controller) Value(name string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.state.values[name]
	return value, ok
}

// Errors returns a copy of the current errors.
func (c *Controller) Errors() Errors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.errors.Clone()
}

// Touched returns a copy of the touched flags.
func (c *Controller) Touched() Touched {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.touched.Clone()
}

// IsSubmitting reports whether a submit attempt is running.
func (c *Controller) IsSubmitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.submitting
}

// Subscribe registers fn to receive a snapshot after state changes. Rapid
// changes may be coalesced into one snapshot; the last delivered snapshot
// always reflects the latest state.
func (c *Controller) Subscribe(fn func(State)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	return c.subs.add(fn)
}

// OnChange normalizes a raw change, stores the value and marks the field
// touched. Malformed input is reported in the field's error slot and leaves
// the stored value as it was.
func (c *Controller) OnChange(ctx context.Context, change Change) error {
	if !c.isDeclared(change.Name) {
		return unknownField(change.Name)
	}
	value, err := Normalize(change)

	c.mu.Lock()
	c.state.touched = withTouched(c.state.touched, change.Name, true)
	if err != nil {
		message := InvalidValueMessage
		var normErr *NormalizationError
		if errors.As(err, &normErr) {
			message = normErr.Message()
		}
		c.supersedeLocked(change.Name)
		c.state.errors = withError(c.state.errors, change.Name, message)
		c.mu.Unlock()
		c.logger.Debug("change rejected", slog.String("field", change.Name), slog.String("kind", string(change.Kind)), slog.String("error", err.Error()))
		c.publish()
		return nil
	}
	c.state.values = withValue(c.state.values, change.Name, value)
	if c.cfg.validateOnChange {
		c.scheduleLocked(ctx, change.Name)
	}
	c.mu.Unlock()
	c.publish()
	return nil
}

// OnBlur marks the field touched and validates its stored value.
func (c *Controller) OnBlur(ctx context.Context, name string) error {
	if !c.isDeclared(name) {
		return unknownField(name)
	}
	c.mu.Lock()
	c.state.touched = withTouched(c.state.touched, name, true)
	if c.cfg.validateOnBlur {
		c.scheduleLocked(ctx, name)
	}
	c.mu.Unlock()
	c.publish()
	return nil
}

// SetFieldValue stores value as is and validates it like OnChange would.
func (c *Controller) SetFieldValue(ctx context.Context, name string, value any) error {
	if !c.isDeclared(name) {
		return unknownField(name)
	}
	c.mu.Lock()
	c.state.values = withValue(c.state.values, name, value)
	if c.cfg.validateOnChange {
		c.scheduleLocked(ctx, name)
	}
	c.mu.Unlock()
	c.publish()
	return nil
}

// SetFieldError stores message for name, or clears it when message is empty.
// A pending validation of the field is discarded.
func (c *Controller) SetFieldError(name, message string) error {
	if !c.isDeclared(name) {
		return unknownField(name)
	}
	c.mu.Lock()
	c.supersedeLocked(name)
	c.state.errors = withError(c.state.errors, name, message)
	c.mu.Unlock()
	c.publish()
	return nil
}

// SetFieldTouched sets the touched flag of name.
func (c *Controller) SetFieldTouched(name string, touched bool) error {
	if !c.isDeclared(name) {
		return unknownField(name)
	}
	c.mu.Lock()
	c.state.touched = withTouched(c.state.touched, name, touched)
	c.mu.Unlock()
	c.publish()
	return nil
}

// ResetForm restores the initial values and clears errors, touched flags and
// the submitting flag. Pending validations are cancelled and their results
// discarded.
func (c *Controller) ResetForm() {
	c.resetForm(context.Background())
}

func (c *Controller) resetForm(ctx context.Context) {
	c.mu.Lock()
	c.epoch++
	for name, cancel := range c.inflight {
		cancel()
		delete(c.inflight, name)
	}
	c.state = newFormState(c.initial)
	c.mu.Unlock()
	c.logger.Debug("form reset")
	c.emit(ctx, activity.BuildFormResetEvent(c.eventInput()))
	c.publish()
}

// ValidateForm validates every field, stores the result as the new error map
// and returns a copy of it. A crashed validator leaves the stored errors
// untouched and returns an empty map with a *ValidatorError.
func (c *Controller) ValidateForm(ctx context.Context) (Errors, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	epoch := c.epoch
	values := c.state.values
	started := c.supersedeAllLocked()
	c.mu.Unlock()

	result, err := c.validator.validateForm(ctx, values)
	if err != nil {
		if !isCancellation(err) {
			c.logger.Warn("form validator failed", slog.String("engine", c.validator.engine), slog.String("error", err.Error()))
		}
		return Errors{}, err
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		c.logger.Debug("form validation discarded after reset")
		return result.Clone(), nil
	}
	merged := result.Clone()
	for _, name := range c.fields {
		if c.seq[name] == started[name] {
			continue
		}
		if message, ok := c.state.errors[name]; ok {
			merged[name] = message
		} else {
			delete(merged, name)
		}
	}
	c.state.errors = merged
	c.mu.Unlock()
	c.logger.Debug("form validated", slog.Int("errors", len(result)))
	c.publish()
	return result.Clone(), nil
}

// Wait blocks until every pending field validation has settled.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels pending validations and waits for them. The controller stays
// readable; later validations are cancelled as soon as they start.
func (c *Controller) Close() {
	c.cancelBase()
	c.wg.Wait()
}

func (c *Controller) isDeclared(name string) bool {
	_, ok := c.declared[name]
	return ok
}

// supersedeLocked invalidates any pending validation of name.
func (c *Controller) supersedeLocked(name string) {
	c.seq[name]++
	if cancel, ok := c.inflight[name]; ok {
		cancel()
		delete(c.inflight, name)
	}
}

// supersedeAllLocked invalidates every pending validation and returns the
// sequence numbers in effect afterwards.
func (c *Controller) supersedeAllLocked() map[string]uint64 {
	started := make(map[string]uint64, len(c.fields))
	for _, name := range c.fields {
		c.supersedeLocked(name)
		started[name] = c.seq[name]
	}
	return started
}

// scheduleLocked starts an async validation of name against the current
// values. Only the latest validation issued for a field since the last reset
// may store its result.
func (c *Controller) scheduleLocked(ctx context.Context, name string) {
	c.supersedeLocked(name)
	seq := c.seq[name]
	epoch := c.epoch
	values := c.state.values
	vctx, cancel := c.validationContext(ctx)
	c.inflight[name] = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.runFieldValidation(vctx, name, seq, epoch, values)
	}()
}

func (c *Controller) runFieldValidation(ctx context.Context, name string, seq, epoch uint64, values Values) {
	message, err := c.validator.validateField(ctx, name, values)
	if err != nil {
		if isCancellation(err) {
			c.logger.Debug("field validation cancelled", slog.String("field", name), slog.String("error", err.Error()))
			return
		}
		c.logger.Warn("field validator failed", slog.String("field", name), slog.String("engine", c.validator.engine), slog.String("error", err.Error()))
	}

	c.mu.Lock()
	if c.epoch != epoch || c.seq[name] != seq {
		c.mu.Unlock()
		c.logger.Debug("stale field validation discarded", slog.String("field", name), slog.Uint64("seq", seq))
		return
	}
	delete(c.inflight, name)
	c.state.errors = withError(c.state.errors, name, message)
	c.mu.Unlock()
	c.logger.Debug("field validated", slog.String("field", name), slog.Bool("valid", message == ""))
	c.publish()
}

// validationContext derives a validation context from the caller's context
// that is also cancelled by Close and bounded by the configured timeout.
func (c *Controller) validationContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.cfg.validationTimeout > 0 {
		ctx, cancel = context.WithTimeout(parent, c.cfg.validationTimeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	stop := context.AfterFunc(c.base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// publish delivers the latest snapshot to subscribers. Calls made while a
// delivery is running, including from a subscriber, are folded into it.
func (c *Controller) publish() {
	c.notifyMu.Lock()
	c.dirty = true
	if c.delivering {
		c.notifyMu.Unlock()
		return
	}
	c.delivering = true
	for c.dirty {
		c.dirty = false
		c.notifyMu.Unlock()
		if subs := c.subs.list(); len(subs) > 0 {
			snapshot := c.State()
			for _, fn := range subs {
				fn(snapshot)
			}
		}
		c.notifyMu.Lock()
	}
	c.delivering = false
	c.notifyMu.Unlock()
}

func (c *Controller) eventInput() activity.FormEventInput {
	return activity.FormEventInput{FormID: c.formID}
}

func (c *Controller) emit(ctx context.Context, event activity.Event) {
	if err := c.emitter.Emit(ctx, event); err != nil {
		c.logger.Error("activity hook failed", slog.String("verb", event.Verb), slog.String("error", err.Error()))
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
