package outbox

import (
	"encoding"
	"encoding/json"
	"fmt"
	"time"
)

// jsonEnvelope is the on-disk shape written by JSONSerializer. It mirrors the
// teacher's ad hoc outbox payload (aggregate_id/op/payload JSON blob in
// internal/storage/postgres/adapter.go's writeOutbox) generalized into a
// typed, round-tripping invocation record.
type jsonEnvelope struct {
	TargetName         string    `json:"target"`
	MethodName         string    `json:"method"`
	ParameterTypeNames []string  `json:"paramTypes"`
	Args               []jsonArg `json:"args"`
}

type jsonArg struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// argKinds are the supported argument shapes. Anything else fails at
// Serialize time with SerializationUnsupportedError, per spec.md §4.1/§6.
const (
	kindNil     = "nil"
	kindBool    = "bool"
	kindInt64   = "int64"
	kindFloat64 = "float64"
	kindString  = "string"
	kindTime    = "time"
	kindText    = "text" // encoding.TextMarshaler (covers most enum types)
	kindBytes   = "bytes"
)

// JSONSerializer is the default Serializer (spec.md §6 "serializer (default
// JSON with argument-type whitelist)").
type JSONSerializer struct{}

var _ Serializer = JSONSerializer{}

func (JSONSerializer) Serialize(inv Invocation) ([]byte, error) {
	env := jsonEnvelope{
		TargetName:         inv.TargetName,
		MethodName:         inv.MethodName,
		ParameterTypeNames: inv.ParameterTypeNames,
		Args:               make([]jsonArg, len(inv.Args)),
	}
	for i, a := range inv.Args {
		arg, err := encodeArg(a)
		if err != nil {
			return nil, &SerializationUnsupportedError{Index: i, Value: a, Cause: err}
		}
		env.Args[i] = arg
	}
	return json.Marshal(env)
}

func (JSONSerializer) Deserialize(data []byte) (Invocation, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Invocation{}, fmt.Errorf("outbox: deserialize invocation: %w", err)
	}
	args := make([]any, len(env.Args))
	for i, a := range env.Args {
		v, err := decodeArg(a)
		if err != nil {
			return Invocation{}, fmt.Errorf("outbox: deserialize arg %d: %w", i, err)
		}
		args[i] = v
	}
	return Invocation{
		TargetName:         env.TargetName,
		MethodName:         env.MethodName,
		ParameterTypeNames: env.ParameterTypeNames,
		Args:               args,
	}, nil
}

func encodeArg(a any) (jsonArg, error) {
	switch v := a.(type) {
	case nil:
		return jsonArg{Kind: kindNil}, nil
	case bool:
		return marshalKind(kindBool, v)
	case int:
		return marshalKind(kindInt64, int64(v))
	case int64:
		return marshalKind(kindInt64, v)
	case float64:
		return marshalKind(kindFloat64, v)
	case string:
		return marshalKind(kindString, v)
	case time.Time:
		return marshalKind(kindTime, v.UTC().Format(time.RFC3339Nano))
	case []byte:
		return marshalKind(kindBytes, v)
	case encoding.TextMarshaler:
		text, err := v.MarshalText()
		if err != nil {
			return jsonArg{}, err
		}
		return marshalKind(kindText, string(text))
	default:
		return jsonArg{}, fmt.Errorf("unsupported argument type %T", a)
	}
}

func marshalKind(kind string, v any) (jsonArg, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return jsonArg{}, err
	}
	return jsonArg{Kind: kind, Value: raw}, nil
}

func decodeArg(a jsonArg) (any, error) {
	switch a.Kind {
	case kindNil:
		return nil, nil
	case kindBool:
		var v bool
		return v, json.Unmarshal(a.Value, &v)
	case kindInt64:
		var v int64
		return v, json.Unmarshal(a.Value, &v)
	case kindFloat64:
		var v float64
		return v, json.Unmarshal(a.Value, &v)
	case kindString, kindText:
		var v string
		return v, json.Unmarshal(a.Value, &v)
	case kindTime:
		var s string
		if err := json.Unmarshal(a.Value, &s); err != nil {
			return nil, err
		}
		return time.Parse(time.RFC3339Nano, s)
	case kindBytes:
		var v []byte
		return v, json.Unmarshal(a.Value, &v)
	default:
		return nil, fmt.Errorf("unknown argument kind %q", a.Kind)
	}
}
