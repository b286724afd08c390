package formstate

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeByKind(t *testing.T) {
	one := File{Name: "a.txt", Size: 3}
	two := File{Name: "b.txt", Size: 4}

	cases := []struct {
		name   string
		change Change
		want   any
	}{
		{name: "text passthrough", change: Change{Kind: KindText, Value: " hi "}, want: " hi "},
		{name: "unknown kind passthrough", change: Change{Kind: "email", Value: "a@b.c"}, want: "a@b.c"},
		{name: "radio passthrough", change: Change{Kind: KindRadio, Value: "blue"}, want: "blue"},
		{name: "checkbox checked", change: Change{Kind: KindCheckbox, Checked: true}, want: true},
		{name: "checkbox unchecked", change: Change{Kind: KindCheckbox, Value: "on"}, want: false},
		{name: "file none", change: Change{Kind: KindFile}, want: nil},
		{name: "file single", change: Change{Kind: KindFile, Files: []File{one}}, want: one},
		{name: "file multiple", change: Change{Kind: KindFile, Files: []File{one, two}}, want: []File{one, two}},
		{name: "date empty", change: Change{Kind: KindDate, Value: ""}, want: nil},
		{name: "date only", change: Change{Kind: KindDate, Value: "2024-01-15"}, want: "2024-01-15T00:00:00.000Z"},
		{name: "date malformed kept", change: Change{Kind: KindDate, Value: "15/01/2024"}, want: "15/01/2024"},
		{name: "number empty", change: Change{Kind: KindNumber, Value: ""}, want: nil},
		{name: "number integer", change: Change{Kind: KindNumber, Value: "42"}, want: float64(42)},
		{name: "number decimal", change: Change{Kind: KindNumber, Value: " 3.5 "}, want: 3.5},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.change)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %#v, got %#v", tc.want, got)
			}
		})
	}
}

func TestNormalizeDateKeepsCalendarDay(t *testing.T) {
	got, err := Normalize(Change{Kind: KindDate, Value: "2024-01-15"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stamp, ok := got.(string)
	if !ok || !strings.HasPrefix(stamp, "2024-01-15") {
		t.Fatalf("expected ISO timestamp for 2024-01-15, got %#v", got)
	}
}

func TestNormalizeNumberRejectsNonNumericText(t *testing.T) {
	for _, raw := range []string{"abc", "NaN", "Inf", "12abc"} {
		_, err := Normalize(Change{Name: "age", Kind: KindNumber, Value: raw})
		if err == nil {
			t.Fatalf("expected error for %q", raw)
		}
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %q, got %v", raw, err)
		}
		var normErr *NormalizationError
		if !errors.As(err, &normErr) {
			t.Fatalf("expected NormalizationError, got %T", err)
		}
		if normErr.Field != "age" || normErr.Message() != InvalidNumberMessage {
			t.Fatalf("unexpected normalization error %+v", normErr)
		}
	}
}

func TestNormalizeFileCopiesSelection(t *testing.T) {
	files := []File{{Name: "a"}, {Name: "b"}}
	got, err := Normalize(Change{Kind: KindFile, Files: files})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	files[0].Name = "changed"
	stored := got.([]File)
	if stored[0].Name != "a" {
		t.Fatalf("expected stored files detached from input, got %+v", stored)
	}
}
