package serialize

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/gammazero/wampsub/wamp"
	"github.com/stretchr/testify/require"
)

func hasFeature(details wamp.Dict, role, feature string) bool {
	b, _ := wamp.DictFlag(details, []string{"roles", role, "features", feature})
	return b
}

func detailRolesFeatures() wamp.Dict {
	return wamp.Dict{
		"roles": wamp.Dict{
			"publisher": wamp.Dict{
				"features": wamp.Dict{
					"subscriber_blackwhite_listing": true,
				},
			},
			"subscriber": wamp.Dict{},
		},
	}
}

var serializations = []Serialization{JSON, MSGPACK, CBOR}

func TestSerialization(t *testing.T) {
	require.Equal(t, "wamp.2.json", JSON.Subprotocol())
	require.Equal(t, "wamp.2.msgpack", MSGPACK.Subprotocol())
	require.Equal(t, "wamp.2.cbor", CBOR.Subprotocol())

	require.False(t, JSON.IsBinary())
	require.True(t, MSGPACK.IsBinary())
	require.True(t, CBOR.IsBinary())

	require.IsType(t, &JSONSerializer{}, JSON.NewSerializer())
	require.IsType(t, &MessagePackSerializer{}, MSGPACK.NewSerializer())
	require.IsType(t, &CBORSerializer{}, CBOR.NewSerializer())
	require.Nil(t, Serialization(9).NewSerializer())
}

func TestSerializeHello(t *testing.T) {
	for _, ser := range serializations {
		hello := &wamp.Hello{Realm: "nexus.realm", Details: detailRolesFeatures()}
		s := ser.NewSerializer()
		b, err := s.Serialize(hello)
		require.NoError(t, err, ser)
		require.NotZero(t, len(b), "no serialized data")

		msg, err := s.Deserialize(b)
		require.NoError(t, err, ser)
		require.Equal(t, wamp.HELLO, msg.MessageType())
		h := msg.(*wamp.Hello)
		require.Equal(t, hello.Realm, h.Realm)
		require.True(t, hasFeature(h.Details, "publisher", "subscriber_blackwhite_listing"),
			"%s did not deserialize message details", ser)
	}
}

func TestJSONDeserialize(t *testing.T) {
	s := &JSONSerializer{}

	data := `[1,"nexus.realm",{}]`
	expect := &wamp.Hello{Realm: "nexus.realm", Details: wamp.Dict{}}
	msg, err := s.Deserialize([]byte(data))
	require.NoError(t, err)
	require.Equal(t, expect, msg)
}

func TestMessagePackDeserialize(t *testing.T) {
	s := &MessagePackSerializer{}

	data := []byte{0x93, 0x01, 0xab, 0x6e, 0x65, 0x78, 0x75, 0x73, 0x2e, 0x72,
		0x65, 0x61, 0x6c, 0x6d, 0x80}
	expect := &wamp.Hello{Realm: "nexus.realm", Details: wamp.Dict{}}
	msg, err := s.Deserialize(data)
	require.NoError(t, err)
	require.Equal(t, expect, msg)
}

func TestCBORDeserialize(t *testing.T) {
	s := &CBORSerializer{}

	// [1, "nexus.realm", {}]
	data := []byte{0x83, 0x01, 0x6b, 0x6e, 0x65, 0x78, 0x75, 0x73, 0x2e, 0x72,
		0x65, 0x61, 0x6c, 0x6d, 0xa0}
	expect := &wamp.Hello{Realm: "nexus.realm", Details: wamp.Dict{}}
	msg, err := s.Deserialize(data)
	require.NoError(t, err)
	require.Equal(t, expect, msg)
}

func TestRoundTrip(t *testing.T) {
	msgs := []wamp.Message{
		&wamp.Hello{Realm: "realm1", Details: wamp.Dict{"agent": "x"}},
		&wamp.Welcome{ID: 1234, Details: wamp.Dict{"authrole": "anonymous"}},
		&wamp.Abort{Details: wamp.Dict{}, Reason: wamp.ErrNoSuchRealm},
		&wamp.Goodbye{Details: wamp.Dict{}, Reason: wamp.CloseRealm},
		&wamp.Error{Type: wamp.SUBSCRIBE, Request: 7, Details: wamp.Dict{},
			Error: wamp.ErrNotAuthorized},
		&wamp.Error{Type: wamp.PUBLISH, Request: 8, Details: wamp.Dict{},
			Error: wamp.ErrInvalidURI, Arguments: wamp.List{"bad uri"}},
		&wamp.Publish{Request: 9, Options: wamp.Dict{}, Topic: "com.a",
			Arguments: wamp.List{"x"}, ArgumentsKw: wamp.Dict{"k": "v"}},
		&wamp.Published{Request: 9, Publication: 99},
		&wamp.Subscribe{Request: 10, Options: wamp.Dict{}, Topic: "com.a"},
		&wamp.Subscribed{Request: 10, Subscription: 5},
		&wamp.Unsubscribe{Request: 11, Subscription: 5},
		&wamp.Unsubscribed{Request: 11},
		&wamp.Event{Subscription: 5, Publication: 99, Details: wamp.Dict{},
			Arguments: wamp.List{"yup"}, ArgumentsKw: wamp.Dict{"k": "v"}},
	}
	for _, ser := range serializations {
		s := ser.NewSerializer()
		for _, m := range msgs {
			b, err := s.Serialize(m)
			require.NoError(t, err, "%s %s", ser, m.MessageType())
			out, err := s.Deserialize(b)
			require.NoError(t, err, "%s %s", ser, m.MessageType())
			require.Equal(t, m.MessageType(), out.MessageType())
			require.Equal(t, m, out, "%s %s did not round trip", ser, m.MessageType())
		}
	}
}

func TestPublishAlwaysSixFields(t *testing.T) {
	s := &JSONSerializer{}
	pub := &wamp.Publish{Request: 42, Topic: "com.myapp.topic1"}
	b, err := s.Serialize(pub)
	require.NoError(t, err)
	require.Equal(t, `[16,42,{},"com.myapp.topic1",[],{}]`, string(b))

	pub.Arguments = wamp.List{int64(42), "yup"}
	b, err = s.Serialize(pub)
	require.NoError(t, err)
	require.Equal(t, `[16,42,{},"com.myapp.topic1",[42,"yup"],{}]`, string(b))

	// Decoding accepts the short forms.
	msg, err := s.Deserialize([]byte(`[16,1,{},"com.a"]`))
	require.NoError(t, err)
	require.Nil(t, msg.(*wamp.Publish).Arguments)
}

func TestEventLengths(t *testing.T) {
	s := &JSONSerializer{}

	msg, err := s.Deserialize([]byte(`[36,5,99,{}]`))
	require.NoError(t, err)
	ev := msg.(*wamp.Event)
	require.Nil(t, ev.Arguments)
	require.Nil(t, ev.ArgumentsKw)

	msg, err = s.Deserialize([]byte(`[36,5,99,{},[42,"yup"]]`))
	require.NoError(t, err)
	ev = msg.(*wamp.Event)
	require.Equal(t, wamp.ID(5), ev.Subscription)
	require.Equal(t, wamp.ID(99), ev.Publication)
	require.Len(t, ev.Arguments, 2)
	n, _ := wamp.AsInt64(ev.Arguments[0])
	require.Equal(t, int64(42), n)
	require.Equal(t, "yup", ev.Arguments[1])
	require.Nil(t, ev.ArgumentsKw, "5 fields means no kwargs")

	msg, err = s.Deserialize([]byte(`[36,5,99,{},[],{"color":"orange"}]`))
	require.NoError(t, err)
	ev = msg.(*wamp.Event)
	require.Equal(t, wamp.Dict{"color": "orange"}, ev.ArgumentsKw)
}

func TestMsgToList(t *testing.T) {
	check := func(args wamp.List, kwArgs wamp.Dict, expect int, message string) {
		msg := &wamp.Event{Arguments: args, ArgumentsKw: kwArgs}
		list := msgToList(msg)
		require.Len(t, list, expect, message)
		// Positions that are written are never nil.
		for i := range list {
			require.NotNil(t, list[i], "%s: element %d", message, i)
		}
	}

	check(nil, nil, 4, "nil args, nil kwArgs")
	check(wamp.List{}, make(wamp.Dict), 4, "empty args, empty kwArgs")
	check(wamp.List{1}, nil, 5, "non-empty args, nil kwArgs")
	check(nil, wamp.Dict{"a": nil}, 6, "nil args, non-empty kwArgs")
	check(wamp.List{1}, make(wamp.Dict), 5, "non-empty args, empty kwArgs")
	check(wamp.List{}, wamp.Dict{"a": nil}, 6, "empty args, non-empty kwArgs")
	check(wamp.List{1}, wamp.Dict{"a": nil}, 6, "args and kwArgs")

	list := msgToList(&wamp.Event{ArgumentsKw: wamp.Dict{"a": 1}})
	require.Equal(t, wamp.List{}, list[4], "nil args before kwargs must be empty list")
}

func TestArity(t *testing.T) {
	checks := []struct {
		msg      wamp.Message
		min, max int
	}{
		{&wamp.Hello{}, 3, 3},
		{&wamp.Error{}, 5, 7},
		{&wamp.Publish{}, 4, 6},
		{&wamp.Subscribed{}, 3, 3},
		{&wamp.Unsubscribed{}, 2, 2},
		{&wamp.Event{}, 4, 6},
	}
	for _, c := range checks {
		min, max := arity(reflect.TypeOf(c.msg).Elem())
		require.Equal(t, c.min, min, c.msg.MessageType())
		require.Equal(t, c.max, max, c.msg.MessageType())
	}
}

func TestDeserializeViolations(t *testing.T) {
	bad := map[string]string{
		"empty frame":        ``,
		"null":               `null`,
		"not array":          `{"a":1}`,
		"scalar":             `"hello"`,
		"empty array":        `[]`,
		"string type code":   `["x",1,{}]`,
		"unknown type":       `[99,1]`,
		"undefined code":     `[7,{},"a"]`,
		"rpc type":           `[48,1,{},"com.proc"]`,
		"subscribed short":   `[33,1]`,
		"subscribed long":    `[33,1,2,3]`,
		"event short":        `[36,1,2]`,
		"event long":         `[36,1,2,{},[],{},5]`,
		"publish short":      `[16,1,{}]`,
		"error short":        `[8,32,1,{}]`,
		"id is string":       `[33,"a",2]`,
		"id is negative":     `[33,-1,2]`,
		"id is null":         `[33,null,2]`,
		"uri is number":      `[32,1,{},123]`,
		"details not dict":   `[2,1,"details"]`,
		"args not list":      `[36,1,2,{},"args"]`,
		"garbage":            `{{{`,
		"trailing truncated": `[33,1,`,
	}
	s := &JSONSerializer{}
	for name, data := range bad {
		msg, err := s.Deserialize([]byte(data))
		require.Error(t, err, name)
		require.Nil(t, msg, name)
		require.True(t, errors.Is(err, wamp.ErrProtocolViolation),
			"%s: error does not wrap protocol violation: %s", name, err)
	}

	// Same checks hold for binary serializers.
	for _, ser := range []Serialization{MSGPACK, CBOR} {
		_, err := ser.NewSerializer().Deserialize(nil)
		require.ErrorIs(t, err, wamp.ErrProtocolViolation)
		_, err = ser.NewSerializer().Deserialize([]byte{0xff, 0x00, 0x13})
		require.ErrorIs(t, err, wamp.ErrProtocolViolation)
	}
}

func TestMessagePackRawToString(t *testing.T) {
	require.True(t, mph.RawToString)
	ms := &MessagePackSerializer{}
	b, err := ms.Serialize(&wamp.Publish{Request: 1, Topic: "a", Arguments: wamp.List{"abc"}})
	require.NoError(t, err)
	msg, err := ms.Deserialize(b)
	require.NoError(t, err)
	require.Equal(t, "abc", msg.(*wamp.Publish).Arguments[0])
}

func TestMsgPackToJSON(t *testing.T) {
	arg := "this is a test"
	pub := &wamp.Publish{
		Request:   123,
		Topic:     "msgpack.to.json",
		Arguments: wamp.List{arg},
	}
	ms := &MessagePackSerializer{}
	b, err := ms.Serialize(pub)
	require.NoError(t, err)
	msg, err := ms.Deserialize(b)
	require.NoError(t, err)
	p2 := msg.(*wamp.Publish)
	event := &wamp.Event{
		Subscription: 987,
		Publication:  p2.Request,
		Details:      wamp.Dict{"hello": "world"},
		Arguments:    p2.Arguments,
	}

	js := &JSONSerializer{}
	b, err = js.Serialize(event)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(b), "[36,987,123,"))
	msg, err = js.Deserialize(b)
	require.NoError(t, err)
	require.Equal(t, wamp.EVENT, msg.MessageType())
	e2 := msg.(*wamp.Event)
	require.Equal(t, wamp.ID(987), e2.Subscription)
	require.Equal(t, wamp.ID(123), e2.Publication)
	require.Len(t, e2.Arguments, 1)
	a, _ := wamp.AsString(e2.Arguments[0])
	require.Equal(t, arg, a)
}

type pair struct {
	_struct bool `codec:",toarray"`
	N       int
	S       string
}

type color struct {
	Color string `codec:"color"`
	Size  int    `codec:"size"`
}

func TestDecode(t *testing.T) {
	s := &JSONSerializer{}
	msg, err := s.Deserialize([]byte(`[36,5,99,{},[42,"yup"],{"color":"orange","size":3}]`))
	require.NoError(t, err)
	ev := msg.(*wamp.Event)

	var p pair
	require.NoError(t, Decode(ev.Arguments, &p))
	require.Equal(t, 42, p.N)
	require.Equal(t, "yup", p.S)

	var c color
	require.NoError(t, Decode(ev.ArgumentsKw, &c))
	require.Equal(t, color{Color: "orange", Size: 3}, c)

	var list []interface{}
	require.NoError(t, Decode(ev.Arguments, &list))
	require.Len(t, list, 2)

	// Shape mismatches.
	var n int
	require.Error(t, Decode("yup", &n))
	var swapped pair
	require.Error(t, Decode(wamp.List{"yup", 42}, &swapped))
	require.Error(t, Decode(ev.Arguments, nil))
}
