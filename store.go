package formstate

import (
	"sort"
	"sync"
)

// formState is the controller's state. Its maps are replaced wholesale on
// every change and never mutated in place, so a map taken under the lock may
// be read after it is released.
type formState struct {
	values     Values
	errors     Errors
	touched    Touched
	submitting bool
}

func newFormState(initial Values) formState {
	return formState{
		values:  initial.Clone(),
		errors:  Errors{},
		touched: Touched{},
	}
}

func (s formState) snapshot() State {
	return State{
		Values:       s.values.Clone(),
		Errors:       s.errors.Clone(),
		Touched:      s.touched.Clone(),
		IsSubmitting: s.submitting,
	}
}

// Clone returns a shallow copy of v.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for key, value := range v {
		out[key] = value
	}
	return out
}

// Clone returns a copy of e.
func (e Errors) Clone() Errors {
	out := make(Errors, len(e))
	for key, message := range e {
		out[key] = message
	}
	return out
}

// Clone returns a copy of t.
func (t Touched) Clone() Touched {
	out := make(Touched, len(t))
	for key, touched := range t {
		out[key] = touched
	}
	return out
}

// Fields returns the keys of v in sorted order.
func (v Values) Fields() []string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func withValue(values Values, name string, value any) Values {
	out := values.Clone()
	out[name] = value
	return out
}

// withError merges one field result. An empty message removes the key.
func withError(errs Errors, name, message string) Errors {
	if message == "" {
		if _, ok := errs[name]; !ok {
			return errs
		}
		out := errs.Clone()
		delete(out, name)
		return out
	}
	if current, ok := errs[name]; ok && current == message {
		return errs
	}
	out := errs.Clone()
	out[name] = message
	return out
}

func withTouched(touched Touched, name string, value bool) Touched {
	if current, ok := touched[name]; ok && current == value {
		return touched
	}
	out := touched.Clone()
	out[name] = value
	return out
}

func touchAll(fields []string) Touched {
	out := make(Touched, len(fields))
	for _, name := range fields {
		out[name] = true
	}
	return out
}

// subscribers fans state snapshots out to presentation clients.
type subscribers struct {
	mu     sync.Mutex
	nextID uint64
	funcs  map[uint64]func(State)
}

func (s *subscribers) add(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.funcs == nil {
		s.funcs = map[uint64]func(State){}
	}
	id := s.nextID
	s.nextID++
	s.funcs[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.funcs, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) list() []func(State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.funcs) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(s.funcs))
	for id := range s.funcs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]func(State), len(ids))
	for i, id := range ids {
		out[i] = s.funcs[id]
	}
	return out
}
