package wamp

import "fmt"

// Value is a dynamically typed value carried in event arguments and keyword
// arguments.  It is one of Int, Uint, Float, Bool, String, Seq, Map or None.
type Value interface {
	// Native returns the plain Go form of the value, which is what the
	// serializers encode.
	Native() interface{}

	isValue()
}

type (
	// Int is a signed integer value.
	Int int64
	// Uint is an unsigned integer value.
	Uint uint64
	// Float is a floating point value.
	Float float64
	// Bool is a boolean value.
	Bool bool
	// String is a text value.
	String string
	// Seq is an ordered sequence of values.
	Seq []Value
	// Map maps text keys to values.
	Map map[string]Value
	// None is the empty value, encoded as null.
	None struct{}
)

func (v Int) Native() interface{}    { return int64(v) }
func (v Uint) Native() interface{}   { return uint64(v) }
func (v Float) Native() interface{}  { return float64(v) }
func (v Bool) Native() interface{}   { return bool(v) }
func (v String) Native() interface{} { return string(v) }
func (v None) Native() interface{}   { return nil }
func (v Seq) Native() interface{}    { return v.List() }
func (v Map) Native() interface{}    { return v.Dict() }

func (Int) isValue()    {}
func (Uint) isValue()   {}
func (Float) isValue()  {}
func (Bool) isValue()   {}
func (String) isValue() {}
func (Seq) isValue()    {}
func (Map) isValue()    {}
func (None) isValue()   {}

// List converts the sequence to a List of native values.  A nil Seq gives a
// nil List.
func (v Seq) List() List {
	if v == nil {
		return nil
	}
	list := make(List, len(v))
	for i := range v {
		list[i] = native(v[i])
	}
	return list
}

// Dict converts the map to a Dict of native values.  A nil Map gives a nil
// Dict.
func (v Map) Dict() Dict {
	if v == nil {
		return nil
	}
	dict := make(Dict, len(v))
	for k, val := range v {
		dict[k] = native(val)
	}
	return dict
}

func native(v Value) interface{} {
	if v == nil {
		return nil
	}
	return v.Native()
}

// ValueOf converts a native value, such as one produced by a serializer when
// decoding a message, into a Value.  Returns an error if v, or anything
// nested in it, has a type that Value cannot represent.
func ValueOf(v interface{}) (Value, error) {
	switch v := v.(type) {
	case nil:
		return None{}, nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case string:
		return String(v), nil
	case []byte:
		return String(v), nil
	case URI:
		return String(v), nil
	case int:
		return Int(v), nil
	case int8:
		return Int(v), nil
	case int16:
		return Int(v), nil
	case int32:
		return Int(v), nil
	case int64:
		return Int(v), nil
	case uint:
		return Uint(v), nil
	case uint8:
		return Uint(v), nil
	case uint16:
		return Uint(v), nil
	case uint32:
		return Uint(v), nil
	case uint64:
		return Uint(v), nil
	case ID:
		return Uint(v), nil
	case float32:
		return Float(v), nil
	case float64:
		return Float(v), nil
	case List:
		return seqOf(v)
	case []interface{}:
		return seqOf(v)
	case Dict:
		return mapOf(v)
	case map[string]interface{}:
		return mapOf(v)
	case map[interface{}]interface{}:
		m := make(Map, len(v))
		for k, val := range v {
			key, ok := AsString(k)
			if !ok {
				return nil, fmt.Errorf("map key %v is not a string", k)
			}
			cv, err := ValueOf(val)
			if err != nil {
				return nil, err
			}
			m[key] = cv
		}
		return m, nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

// SeqOf converts a List into a Seq.
func SeqOf(list List) (Seq, error) {
	return seqOf(list)
}

// MapOf converts a Dict into a Map.
func MapOf(dict Dict) (Map, error) {
	return mapOf(dict)
}

func seqOf(list []interface{}) (Seq, error) {
	seq := make(Seq, len(list))
	for i := range list {
		v, err := ValueOf(list[i])
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		seq[i] = v
	}
	return seq, nil
}

func mapOf(dict map[string]interface{}) (Map, error) {
	m := make(Map, len(dict))
	for k, val := range dict {
		v, err := ValueOf(val)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		m[k] = v
	}
	return m, nil
}
