// Package rpcbridge authenticates with and streams frames to the remote
// detection service over a bidirectional gRPC call, correlating
// unordered responses back to their originating frames.
package rpcbridge

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodecName is registered as a custom gRPC content-subtype so the
// detection service's wire messages can be plain JSON-tagged structs
// instead of protoc-generated types.
const jsonCodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements grpc/encoding.Codec with encoding/json.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}
