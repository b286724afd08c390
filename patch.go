package formstate

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"
)

// PatchOp names an RFC 6902 operation.
type PatchOp string

const (
	PatchAdd     PatchOp = "add"
	PatchRemove  PatchOp = "remove"
	PatchReplace PatchOp = "replace"
	PatchMove    PatchOp = "move"
	PatchCopy    PatchOp = "copy"
	PatchTest    PatchOp = "test"
)

// PatchOperation is one RFC 6902 operation over the values document.
type PatchOperation struct {
	Op    PatchOp `json:"op"`
	Path  string  `json:"path"`
	From  string  `json:"from,omitempty"`
	Value any     `json:"value"`
}

// ApplyPatch applies ops to the values document atomically. Every path must
// address a declared field. Changed fields are stored, touched and validated
// like SetFieldValue; removing a field stores null. Values pass through JSON,
// so patched fields hold JSON types (float64, string, bool, map, slice).
func (c *Controller) ApplyPatch(ctx context.Context, ops []PatchOperation) error {
	if len(ops) == 0 {
		return nil
	}
	for _, op := range ops {
		if err := c.checkPatchPath(op.Path); err != nil {
			return err
		}
		if op.Op == PatchMove || op.Op == PatchCopy {
			if err := c.checkPatchPath(op.From); err != nil {
				return err
			}
		}
	}

	c.mu.Lock()
	current := c.state.values
	epoch := c.epoch
	c.mu.Unlock()

	before, patched, err := patchValues(current, ops)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return fmt.Errorf("formstate: patch discarded: form was reset")
	}
	var changed []string
	values := c.state.values
	for _, name := range c.fields {
		after, ok := patched[name]
		if ok && reflect.DeepEqual(before[name], after) {
			continue
		}
		if !ok && before[name] == nil {
			continue
		}
		values = withValue(values, name, after)
		changed = append(changed, name)
	}
	c.state.values = values
	for _, name := range changed {
		c.state.touched = withTouched(c.state.touched, name, true)
		if c.cfg.validateOnChange {
			c.scheduleLocked(ctx, name)
		}
	}
	c.mu.Unlock()
	if len(changed) > 0 {
		c.publish()
	}
	return nil
}

func (c *Controller) checkPatchPath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: patch path %q must address a field", ErrInvalidInput, path)
	}
	field, _, _ := strings.Cut(path[1:], "/")
	field = strings.ReplaceAll(field, "~1", "/")
	field = strings.ReplaceAll(field, "~0", "~")
	if !c.isDeclared(field) {
		return unknownField(field)
	}
	return nil
}

// patchValues returns the values document before and after applying ops,
// both decoded from JSON so they compare field by field.
func patchValues(values Values, ops []PatchOperation) (map[string]any, map[string]any, error) {
	document, err := sonic.Marshal(values)
	if err != nil {
		return nil, nil, fmt.Errorf("formstate: encode values: %w", err)
	}
	encodedOps, err := sonic.Marshal(ops)
	if err != nil {
		return nil, nil, fmt.Errorf("formstate: encode patch: %w", err)
	}
	patch, err := jsonpatch.DecodePatch(encodedOps)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decode patch: %v", ErrInvalidInput, err)
	}
	modified, err := patch.Apply(document)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: apply patch: %v", ErrInvalidInput, err)
	}

	var before, after map[string]any
	if err := sonic.Unmarshal(document, &before); err != nil {
		return nil, nil, fmt.Errorf("formstate: decode values: %w", err)
	}
	if err := sonic.Unmarshal(modified, &after); err != nil {
		return nil, nil, fmt.Errorf("formstate: decode patched values: %w", err)
	}
	return before, after, nil
}
