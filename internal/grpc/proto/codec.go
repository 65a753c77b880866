package proto

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/mem"
)

// CodecName подтип content-type, под которым зарегистрирован JSON-кодек
const CodecName = "json"

func init() {
	encoding.RegisterCodecV2(jsonCodec{})
}

// jsonCodec сериализует сообщения сервиса в JSON
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) (mem.BufferSlice, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mem.BufferSlice{mem.SliceBuffer(b)}, nil
}

func (jsonCodec) Unmarshal(data mem.BufferSlice, v any) error {
	return json.Unmarshal(data.Materialize(), v)
}

func (jsonCodec) Name() string {
	return CodecName
}
