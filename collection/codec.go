package collection

import (
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// CodecOptions keeps nil slices and maps as null so that a decoded record is
// structurally equal to the one that was encoded.
var CodecOptions = json.JoinOptions(
	json.FormatNilSliceAsNull(true),
	json.FormatNilMapAsNull(true),
)

func Marshal(v any) (jsontext.Value, error) {
	data, err := json.Marshal(v, CodecOptions)
	return jsontext.Value(data), err
}

func Unmarshal(payload []byte, v any) error {
	return json.Unmarshal(payload, v, CodecOptions)
}
