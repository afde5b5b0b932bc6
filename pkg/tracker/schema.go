package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/campusops/devtrack/internal/apperr"
)

// The tracker's documented response shapes. Payloads are validated before
// decoding so drift in the remote contract surfaces as a protocol error
// instead of a half-populated record.
const assetSchemaJSON = `{
  "type": "object",
  "required": ["asset_id", "tag"],
  "properties": {
    "asset_id": {"type": "string", "minLength": 1},
    "tag": {"type": "string"},
    "owner_ref": {"type": ["string", "null"]},
    "custom_fields": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    }
  }
}`

const createdSchemaJSON = `{
  "type": "object",
  "required": ["asset_id"],
  "properties": {
    "asset_id": {"type": "string", "minLength": 1}
  }
}`

const searchSchemaJSON = `{
  "type": "object",
  "required": ["assets"],
  "properties": {
    "assets": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["asset_id", "tag"],
        "properties": {
          "asset_id": {"type": "string", "minLength": 1},
          "tag": {"type": "string"}
        }
      }
    }
  }
}`

var (
	assetSchema   = jsonschema.MustCompileString("asset.json", assetSchemaJSON)
	createdSchema = jsonschema.MustCompileString("created.json", createdSchemaJSON)
	searchSchema  = jsonschema.MustCompileString("search.json", searchSchemaJSON)
)

// decodeValidated checks body against schema and decodes it into out.
func decodeValidated(schema *jsonschema.Schema, body []byte, out interface{}) error {
	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return apperr.Wrap(apperr.KindProtocol, "tracker response is not valid JSON", err)
	}
	if err := schema.Validate(raw); err != nil {
		return apperr.Wrap(apperr.KindProtocol, "tracker response failed schema validation", err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(out); err != nil {
		return apperr.Wrap(apperr.KindProtocol, "tracker response decode failed", err)
	}
	return nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return fmt.Sprintf("%q", s)
}
