package variant

import (
	"fmt"

	"github.com/rhuss/streamwire/pkg/schema"
)

// DecodeFunc turns a payload known to conform to one shape into a Go value.
type DecodeFunc[T any] func(data []byte) (T, error)

// Decode matches data against set and decodes it with the function bound to
// the winning shape. A winning shape without a bound function is reported
// as ErrNoMatchingVariant, naming the shape.
func Decode[T any](data []byte, set *schema.UntaggedSet, decoders map[string]DecodeFunc[T]) (T, string, error) {
	var zero T

	res, err := Match(data, set)
	if err != nil {
		return zero, "", err
	}

	fn, ok := decoders[res.Name()]
	if !ok {
		return zero, res.Name(), &schema.DecodeError{
			Kind:  schema.ErrNoMatchingVariant,
			Set:   set.Name,
			Shape: res.Name(),
			Err:   fmt.Errorf("no decoder bound"),
		}
	}

	v, err := fn(data)
	if err != nil {
		return zero, res.Name(), &schema.DecodeError{Kind: schema.ErrMalformed, Set: set.Name, Shape: res.Name(), Err: err}
	}
	return v, res.Name(), nil
}
