package outbox

// Invocation is the tuple captured by Schedule: a deferred call against a
// symbolic target name, per spec.md §4.1. Args hold the plain Go argument
// values: a Serializer encodes them on Serialize and rebuilds them on
// Deserialize; the core never inspects their shape.
type Invocation struct {
	TargetName          string
	MethodName          string
	ParameterTypeNames  []string
	Args                []any
}

// Serializer maps an Invocation to/from durable text. Implementations must
// round-trip every supported argument kind; unsupported kinds fail at
// Serialize time with SerializationUnsupportedError.
type Serializer interface {
	Serialize(inv Invocation) ([]byte, error)
	Deserialize(data []byte) (Invocation, error)
}
