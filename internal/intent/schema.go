package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	errNoJSON        = errors.New("no json object in reply")
	errSchemaInvalid = errors.New("reply does not match intent schema")
)

var resultSchema = mustSchema(`{
  "type": "object",
  "required": ["intent"],
  "properties": {
    "intent":     {"type": "string", "minLength": 1},
    "event_id":   {"type": ["string", "null"]},
    "event_name": {"type": ["string", "null"]},
    "event_date": {"type": ["string", "null"]},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  }
}`)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile intent schema: %v", err))
	}
	return s
}

type llmReply struct {
	Intent     string   `json:"intent"`
	EventID    *string  `json:"event_id"`
	EventName  *string  `json:"event_name"`
	EventDate  *string  `json:"event_date"`
	Confidence *float64 `json:"confidence"`
}

// parseReply decodes the model output, falling back to the first
// brace-balanced object when the reply is wrapped in prose or fences.
func parseReply(raw string) (llmReply, error) {
	doc, err := decodeObject(raw)
	if err != nil {
		obj, ok := firstJSONObject(raw)
		if !ok {
			return llmReply{}, errNoJSON
		}
		if doc, err = decodeObject(obj); err != nil {
			return llmReply{}, err
		}
	}

	res, err := resultSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return llmReply{}, fmt.Errorf("validate reply: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, len(res.Errors()))
		for i, desc := range res.Errors() {
			msgs[i] = desc.String()
		}
		return llmReply{}, fmt.Errorf("%w: %s", errSchemaInvalid, strings.Join(msgs, "; "))
	}

	buf, _ := json.Marshal(doc)
	var out llmReply
	if err := json.Unmarshal(buf, &out); err != nil {
		return llmReply{}, err
	}
	return out, nil
}

func decodeObject(s string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errNoJSON
	}
	return doc, nil
}

// firstJSONObject scans for the first balanced {...}, ignoring braces inside
// string literals.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inString, escaped := false, false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}
