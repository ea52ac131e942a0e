package serialize

import (
	"reflect"

	"github.com/gammazero/wampsub/wamp"
	"github.com/ugorji/go/codec"
)

var mph *codec.MsgpackHandle

func init() {
	mph = &codec.MsgpackHandle{WriteExt: true}
	mph.RawToString = true
	mph.MapType = reflect.TypeOf(map[string]interface{}(nil))
}

// MessagePackSerializer is an implementation of Serializer that handles
// serializing and deserializing msgpack encoded payloads.
type MessagePackSerializer struct{}

// Serialize encodes a Message into a msgpack payload.
func (s *MessagePackSerializer) Serialize(msg wamp.Message) ([]byte, error) {
	var b []byte
	return b, codec.NewEncoderBytes(&b, mph).Encode(msgToList(msg))
}

// Deserialize decodes a msgpack payload into a Message.
func (s *MessagePackSerializer) Deserialize(data []byte) (wamp.Message, error) {
	return deserialize(func(v *interface{}) error {
		return codec.NewDecoderBytes(data, mph).Decode(v)
	})
}
