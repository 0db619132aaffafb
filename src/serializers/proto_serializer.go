package serializers

import (
	"encoding/json"
	"fmt"

	"ticker-monitor/src/interfaces"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// -----------------------------------------------------------------------------

// ProtoSerializer encodes objects as a binary google.protobuf.Value.
// Objects go through their JSON shape first, so struct tags define the field names.
type ProtoSerializer struct{}

// -----------------------------------------------------------------------------

// NewProtoSerializer creates a new instance of the protobuf serializer.
func NewProtoSerializer() interfaces.ISerializer {
	return &ProtoSerializer{}
}

// -----------------------------------------------------------------------------

// Marshal converts the object to protobuf wire bytes.
func (p *ProtoSerializer) Marshal(obj any) ([]byte, error) {
	if msg, ok := obj.(proto.Message); ok {
		data, err := proto.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("proto marshal error: %w", err)
		}
		return data, nil
	}

	jsonData, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("proto marshal error: %w", err)
	}

	value := &structpb.Value{}
	if err := protojson.Unmarshal(jsonData, value); err != nil {
		return nil, fmt.Errorf("proto marshal error: %w", err)
	}

	data, err := proto.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("proto marshal error: %w", err)
	}
	return data, nil
}

// -----------------------------------------------------------------------------

// Unmarshal converts protobuf wire bytes back into the target object.
func (p *ProtoSerializer) Unmarshal(data []byte, obj any) error {
	if msg, ok := obj.(proto.Message); ok {
		if err := proto.Unmarshal(data, msg); err != nil {
			return fmt.Errorf("proto unmarshal error: %w", err)
		}
		return nil
	}

	value := &structpb.Value{}
	if err := proto.Unmarshal(data, value); err != nil {
		return fmt.Errorf("proto unmarshal error: %w", err)
	}

	jsonData, err := protojson.Marshal(value)
	if err != nil {
		return fmt.Errorf("proto unmarshal error: %w", err)
	}
	if err := json.Unmarshal(jsonData, obj); err != nil {
		return fmt.Errorf("proto unmarshal error: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (p *ProtoSerializer) ContentType() string {
	return "application/x-protobuf"
}

// -----------------------------------------------------------------------------

// NewSerializer returns the serializer registered under name ("json" or "proto").
func NewSerializer(name string) (interfaces.ISerializer, error) {
	switch name {
	case "", "json":
		return NewJSONSerializer(), nil
	case "proto":
		return NewProtoSerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer: %s", name)
	}
}
