package serialize

import (
	"reflect"

	"github.com/gammazero/wampsub/wamp"
	"github.com/ugorji/go/codec"
)

var jsh *codec.JsonHandle

func init() {
	jsh = &codec.JsonHandle{}
	jsh.MapType = reflect.TypeOf(map[string]interface{}(nil))
}

// JSONSerializer is an implementation of Serializer that handles
// serializing and deserializing json encoded payloads.
type JSONSerializer struct{}

// Serialize encodes a Message into a json payload.
func (s *JSONSerializer) Serialize(msg wamp.Message) ([]byte, error) {
	var b []byte
	return b, codec.NewEncoderBytes(&b, jsh).Encode(msgToList(msg))
}

// Deserialize decodes a json payload into a Message.
//
// The json decoder gives positive integers as uint64 and negative ones as
// int64, so the type code is read with wamp.AsInt64.
func (s *JSONSerializer) Deserialize(data []byte) (wamp.Message, error) {
	return deserialize(func(v *interface{}) error {
		return codec.NewDecoderBytes(data, jsh).Decode(v)
	})
}
