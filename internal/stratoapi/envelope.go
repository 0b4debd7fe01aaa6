package stratoapi

import (
	"bytes"
	"encoding/json"
)

// DecodeEnvelope decodes an EdgeKV response body into out. Every EdgeKV
// endpoint except the raw value read replies with the same framing: a
// success flag, error and message lists, and the operation payload under
// "result". Empty bodies decode as JSON null so envelope fields stay at
// their zero values.
func DecodeEnvelope(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		trimmed = []byte("null")
	}
	return json.Unmarshal(trimmed, out)
}

// PayloadKind classifies what a raw value body would parse as.
type PayloadKind int

const (
	// PayloadText marks a body that is not a JSON document.
	PayloadText PayloadKind = iota
	// PayloadJSONString marks a body that parses to a JSON string.
	PayloadJSONString
	// PayloadJSONRecord marks a body that parses to a JSON object.
	PayloadJSONRecord
	// PayloadJSONOther marks a body that parses to any other JSON value
	// (array, number, boolean or null).
	PayloadJSONOther
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadJSONString:
		return "json-string"
	case PayloadJSONRecord:
		return "json-record"
	case PayloadJSONOther:
		return "json-other"
	default:
		return "text"
	}
}

// ProbePayload reports how a raw value body parses as JSON. The result
// is advisory only: stored values are surfaced to callers as raw text no
// matter what they contain, and the parse outcome is discarded after
// logging.
func ProbePayload(body []byte) PayloadKind {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return PayloadText
	}

	var payload any
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return PayloadText
	}

	switch payload.(type) {
	case string:
		return PayloadJSONString
	case map[string]any:
		return PayloadJSONRecord
	default:
		return PayloadJSONOther
	}
}
