package comm

import (
	"fmt"

	"github.com/ugorji/go/codec"
)

// Messages exchanged between ranks are msgpack encoded.
var mh codec.MsgpackHandle

// Encode marshals v for sending to another rank.
func Encode(v any) ([]byte, error) {
	var b []byte
	err := codec.NewEncoderBytes(&b, &mh).Encode(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	return b, nil
}

// Decode unmarshals a payload produced by Encode into v.
func Decode(b []byte, v any) error {
	err := codec.NewDecoderBytes(b, &mh).Decode(v)
	if err != nil {
		return fmt.Errorf("decoding %T: %w", v, err)
	}
	return nil
}

// allReduce gathers x from every rank and combines the values with reduce.
func allReduce[T int | float64](c Comm, op Op, x T, reduce func(Op, []T) T) (T, error) {
	if err := checkOp(op); err != nil {
		return 0, err
	}
	b, err := Encode(x)
	if err != nil {
		return 0, err
	}
	all, err := c.AllGather(b)
	if err != nil {
		return 0, err
	}
	vals := make([]T, len(all))
	for i, b := range all {
		if err := Decode(b, &vals[i]); err != nil {
			return 0, fmt.Errorf("reduction payload from rank %d: %w", i, err)
		}
	}
	return reduce(op, vals), nil
}
