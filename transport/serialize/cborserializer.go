package serialize

import (
	"reflect"

	"github.com/gammazero/wampsub/wamp"
	"github.com/ugorji/go/codec"
)

var cbh *codec.CborHandle

func init() {
	cbh = &codec.CborHandle{}
	cbh.MapType = reflect.TypeOf(map[string]interface{}(nil))
}

// CBORSerializer is an implementation of Serializer that handles
// serializing and deserializing cbor encoded payloads.
type CBORSerializer struct{}

// Serialize encodes a Message into a cbor payload.
func (s *CBORSerializer) Serialize(msg wamp.Message) ([]byte, error) {
	var b []byte
	return b, codec.NewEncoderBytes(&b, cbh).Encode(msgToList(msg))
}

// Deserialize decodes a cbor payload into a Message.
func (s *CBORSerializer) Deserialize(data []byte) (wamp.Message, error) {
	return deserialize(func(v *interface{}) error {
		return codec.NewDecoderBytes(data, cbh).Decode(v)
	})
}
