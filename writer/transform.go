package writer

import (
	"fmt"

	"github.com/pithecene-io/subswarm/wire"
)

// Line wraps a Transform so its output always ends with a trailing
// newline, matching the Fibonacci end-to-end scenario's
// "<n>\t<fib>\n" line format: a child reading the channel with a
// buffered line scanner sees exactly one record per Write.
func Line(inner Transform) Transform {
	return func(item any) ([]byte, error) {
		b, err := inner(item)
		if err != nil {
			return nil, err
		}
		if len(b) == 0 || b[len(b)-1] != '\n' {
			b = append(b, '\n')
		}
		return b, nil
	}
}

// Field projects one named field out of a batch item (a map[string]any)
// and renders it as a decimal integer or string, terminated by a
// newline — the transform a side channel uses to receive one field of
// each batch item.
func Field(name string) Transform {
	return Line(func(item any) ([]byte, error) {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("writer: Field(%q) transform requires a map[string]any item", name)
		}
		v, ok := m[name]
		if !ok {
			return nil, fmt.Errorf("writer: Field(%q) transform: item has no field %q", name, name)
		}
		return []byte(fmt.Sprint(v)), nil
	})
}

// Tab joins the named fields from a map[string]any item with tabs,
// terminated by a newline — the "<n>\t<fib>" shape from the Fibonacci
// end-to-end scenario.
func Tab(names ...string) Transform {
	return Line(func(item any) ([]byte, error) {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("writer: Tab transform requires a map[string]any item")
		}
		out := make([]byte, 0, 16*len(names))
		for i, name := range names {
			if i > 0 {
				out = append(out, '\t')
			}
			v, ok := m[name]
			if !ok {
				return nil, fmt.Errorf("writer: Tab transform: item has no field %q", name)
			}
			out = append(out, []byte(fmt.Sprint(v))...)
		}
		return out, nil
	})
}

// MsgPack encodes an item as a length-prefixed msgpack frame (package
// wire), for side channels whose child reads structured records instead
// of delimited text. Grounded on quarry/ipc/frame.go's wire format.
func MsgPack(item any) ([]byte, error) {
	return wire.Encode(item)
}
