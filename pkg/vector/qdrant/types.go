package qdrant

import (
	qd "github.com/qdrant/go-client/qdrant"

	"github.com/reveriehq/engram/pkg/vector"
)

// decodePayload converts a Qdrant payload map back into a vector.Point,
// recovering the record ID and version from the well-known payload keys.
func decodePayload(payload map[string]*qd.Value) vector.Point {
	p := vector.Point{
		Payload: make(map[string]any, len(payload)),
	}

	for key, value := range payload {
		switch key {
		case "id":
			p.ID = value.GetStringValue()
		case vector.PayloadVersion:
			p.Version = value.GetIntegerValue()
		default:
			p.Payload[key] = fromValue(value)
		}
	}

	return p
}

// fromValue converts a Qdrant protobuf value to its plain Go equivalent.
func fromValue(v *qd.Value) any {
	switch kind := v.GetKind().(type) {
	case *qd.Value_StringValue:
		return kind.StringValue
	case *qd.Value_IntegerValue:
		return kind.IntegerValue
	case *qd.Value_DoubleValue:
		return kind.DoubleValue
	case *qd.Value_BoolValue:
		return kind.BoolValue
	case *qd.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]any, 0, len(items))
		for _, item := range items {
			out = append(out, fromValue(item))
		}
		return out
	default:
		return nil
	}
}

// decodeVectors converts Qdrant named vector output into a perspective map.
func decodeVectors(vs *qd.VectorsOutput) map[string][]float32 {
	named := vs.GetVectors()
	if named == nil {
		return nil
	}

	out := make(map[string][]float32, len(named.GetVectors()))
	for perspective, vec := range named.GetVectors() {
		out[perspective] = vec.GetData()
	}
	return out
}
