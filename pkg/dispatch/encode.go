package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Encode marshals v and sets the discriminator field to tag. A value that
// already carries the same tag is returned as marshalled.
func Encode(v any, discriminator, tag string) ([]byte, error) {
	if tag == "" {
		return nil, errors.New("dispatch: cannot encode an empty tag")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", tag, err)
	}
	return withTag(data, discriminator, tag)
}

// Encode turns a dispatched value back into wire JSON. Unknown values and
// values without a bound decoder are written back byte for byte.
func (d *Dispatcher) Encode(v Value) ([]byte, error) {
	switch data := v.Data.(type) {
	case Unknown:
		return data.Raw, nil
	case json.RawMessage:
		return data, nil
	case nil:
		if len(v.Raw) == 0 {
			return nil, errors.New("dispatch: empty value")
		}
		return v.Raw, nil
	}
	if _, ok := d.set.Lookup(v.Tag); !ok {
		return nil, fmt.Errorf("dispatch: tag %q is not registered in set %s", v.Tag, d.set.Name)
	}
	return Encode(v.Data, d.set.Discriminator, v.Tag)
}

func withTag(data []byte, discriminator, tag string) ([]byte, error) {
	if cur := gjson.GetBytes(data, discriminator); cur.Type == gjson.String && cur.Str == tag {
		return data, nil
	}
	out, err := sjson.SetBytes(data, discriminator, tag)
	if err != nil {
		return nil, fmt.Errorf("set %s: %w", discriminator, err)
	}
	return out, nil
}
