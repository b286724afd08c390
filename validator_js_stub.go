//go:build !js_eval

package formstate

import "errors"

var errJSUnavailable = errors.New("formstate: js validators require the js_eval build tag")

// NewJSFunc is unavailable without the js_eval build tag.
func NewJSFunc(source string) (ValidateFunc, error) {
	return nil, errJSUnavailable
}
