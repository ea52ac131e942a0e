/*
Package serialize provides a Serializer interface with implementations that
encode and decode WAMP messages as JSON, msgpack, or CBOR arrays.

*/
package serialize

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gammazero/wampsub/wamp"
)

const (
	// Use JSON-encoded strings as a payload.
	JSON Serialization = iota
	// Use msgpack-encoded strings as a payload.
	MSGPACK
	// Use CBOR encoding as a payload
	CBOR
)

// Serialization indicates the data serialization format used in a WAMP session
type Serialization int

// String returns the serialization identifier used in subprotocol names.
func (s Serialization) String() string {
	switch s {
	case JSON:
		return "json"
	case MSGPACK:
		return "msgpack"
	case CBOR:
		return "cbor"
	}
	return fmt.Sprintf("serialization(%d)", int(s))
}

// Subprotocol returns the websocket subprotocol that selects this
// serialization, for example "wamp.2.json".
func (s Serialization) Subprotocol() string {
	return "wamp.2." + s.String()
}

// IsBinary reports whether frames in this serialization are binary.  JSON is
// sent as text.
func (s Serialization) IsBinary() bool {
	return s != JSON
}

// NewSerializer returns the Serializer for this serialization, or nil if the
// serialization is not known.
func (s Serialization) NewSerializer() Serializer {
	switch s {
	case JSON:
		return &JSONSerializer{}
	case MSGPACK:
		return &MessagePackSerializer{}
	case CBOR:
		return &CBORSerializer{}
	}
	return nil
}

// Serializer is the interface implemented by an object that can serialize and
// deserialize WAMP messages
type Serializer interface {
	Serialize(wamp.Message) ([]byte, error)
	Deserialize([]byte) (wamp.Message, error)
}

// fieldTag returns the wamp tag of the message field at index i.
func fieldTag(typ reflect.Type, i int) string {
	return typ.Field(i).Tag.Get("wamp")
}

func isOptional(tag string) bool {
	return strings.Contains(tag, "omitempty") || strings.Contains(tag, "optional")
}

// arity returns the minimum and maximum number of elements, including the
// type code, that an encoded message of the given struct type may have.
func arity(typ reflect.Type) (int, int) {
	n := typ.NumField()
	min := 1
	for i := 0; i < n; i++ {
		if !isOptional(fieldTag(typ, i)) {
			min++
		}
	}
	return min, n + 1
}

// listToMsg takes a decoded WAMP message array and populates the fields of
// the message type named by its first element.  Any malformed input is
// reported as a protocol violation.
func listToMsg(vlist []interface{}) (wamp.Message, error) {
	if len(vlist) == 0 {
		return nil, wamp.ProtocolViolation("empty message")
	}
	code, ok := wamp.AsInt64(vlist[0])
	if !ok {
		return nil, wamp.ProtocolViolation("message type %v is not an integer",
			vlist[0])
	}
	msgType := wamp.ParseMessageType(code)
	msg := wamp.NewMessage(msgType)
	if msg == nil {
		return nil, wamp.ProtocolViolation("unsupported message type %d", code)
	}
	val := reflect.ValueOf(msg).Elem()

	min, max := arity(val.Type())
	if len(vlist) < min || len(vlist) > max {
		if min == max {
			return nil, wamp.ProtocolViolation("%s has %d elements, want %d",
				msgType, len(vlist), min)
		}
		return nil, wamp.ProtocolViolation("%s has %d elements, want %d to %d",
			msgType, len(vlist), min, max)
	}

	// Iterate each element of the WAMP message and populate the
	// corresponding field of the target message.
	for i := 1; i < len(vlist); i++ {
		f := val.Field(i - 1)
		if vlist[i] == nil {
			// null is accepted in place of an empty dict or list only.
			if k := f.Kind(); k == reflect.Map || k == reflect.Slice {
				continue
			}
			return nil, wamp.ProtocolViolation("%s field %d (%s) is null",
				msgType, i, val.Type().Field(i-1).Name)
		}
		if err := assignField(f, vlist[i]); err != nil {
			return nil, wamp.ProtocolViolation("%s field %d (%s): %s", msgType,
				i, val.Type().Field(i-1).Name, err)
		}
	}
	return msg, nil
}

// assignField stores arg in the message field f, converting between the
// generic types produced by a decoder and the message field types.
func assignField(f reflect.Value, arg interface{}) error {
	switch f.Kind() {
	case reflect.String:
		s, ok := wamp.AsString(arg)
		if !ok {
			return fmt.Errorf("has %T, want string", arg)
		}
		f.SetString(s)
	case reflect.Uint64:
		n, ok := wamp.AsInt64(arg)
		if !ok || n < 0 {
			return fmt.Errorf("has %v, want id", arg)
		}
		f.SetUint(uint64(n))
	case reflect.Int:
		n, ok := wamp.AsInt64(arg)
		if !ok {
			return fmt.Errorf("has %T, want integer", arg)
		}
		f.SetInt(n)
	case reflect.Map:
		d, ok := wamp.AsDict(arg)
		if !ok {
			return fmt.Errorf("has %T, want dict", arg)
		}
		f.Set(reflect.ValueOf(d))
	case reflect.Slice:
		src := reflect.ValueOf(arg)
		if src.Kind() != reflect.Slice {
			return fmt.Errorf("has %T, want list", arg)
		}
		if err := assignSlice(f, src); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported field kind %s", f.Kind())
	}
	return nil
}

// assignSlice takes the values from src and copies them into dst.
func assignSlice(dst reflect.Value, src reflect.Value) error {
	dst.Set(reflect.MakeSlice(dst.Type(), src.Len(), src.Len()))
	dstElemType := dst.Type().Elem()
	for i := 0; i < src.Len(); i++ {
		v := src.Index(i)
		if !v.Type().AssignableTo(dstElemType) {
			return fmt.Errorf("cannot assign value at index %d", i)
		}
		dst.Index(i).Set(v)
	}
	return nil
}

// msgToList converts a message to a list of interface{}.  Trailing empty
// omitempty fields are not appended to the list.  Any other nil dict or list
// is written as an empty one, so that later positions stay aligned.
func msgToList(msg wamp.Message) []interface{} {
	val := reflect.ValueOf(msg)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	// Skip all empty fields at the end of the message structure by iterating
	// backwards until a non-empty or non-"omitempty" field is found.
	last := typ.NumField() - 1
	for ; last > 0; last-- {
		tag := fieldTag(typ, last)
		if !strings.Contains(tag, "omitempty") || val.Field(last).Len() > 0 {
			break
		}
	}

	ret := make([]interface{}, last+2)
	ret[0] = int(msg.MessageType())
	for i := 0; i <= last; i++ {
		f := val.Field(i)
		switch {
		case f.Kind() == reflect.Map && f.IsNil():
			ret[i+1] = wamp.Dict{}
		case f.Kind() == reflect.Slice && f.IsNil():
			ret[i+1] = wamp.List{}
		case f.Kind() == reflect.Int:
			ret[i+1] = int(f.Int())
		default:
			ret[i+1] = f.Interface()
		}
	}
	return ret
}

// deserialize runs a decoder that produces a generic value and converts the
// result into a message.
func deserialize(decode func(*interface{}) error) (wamp.Message, error) {
	var v interface{}
	if err := decode(&v); err != nil {
		return nil, wamp.ProtocolViolation("cannot decode frame: %s", err)
	}
	if v == nil {
		return nil, wamp.ProtocolViolation("empty message")
	}
	vlist, ok := v.([]interface{})
	if !ok {
		return nil, wamp.ProtocolViolation("message is %T, want array", v)
	}
	return listToMsg(vlist)
}
