package serialize

import (
	"errors"

	"github.com/ugorji/go/codec"
)

// Decode copies the generic value src, such as the arguments or keyword
// arguments of a received event, into the Go value pointed to by dst.
//
// The copy is made by encoding src and decoding the result into dst, so dst
// may be any type the codec package can decode into.  Structs are matched by
// field name, or by position when the struct is tagged as an array:
//
//   type point struct {
//       _struct bool `codec:",toarray"`
//       X, Y    int
//   }
//
// An error is returned if the shape of src does not fit dst.
func Decode(src, dst interface{}) error {
	if dst == nil {
		return errors.New("nil destination")
	}
	var b []byte
	if err := codec.NewEncoderBytes(&b, mph).Encode(src); err != nil {
		return err
	}
	return codec.NewDecoderBytes(b, mph).Decode(dst)
}
