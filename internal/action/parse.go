package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrNoCall reports that the text contains no action call at all. Callers
// treat the raw text as speech instead.
var ErrNoCall = errors.New("no action call found")

// Call is one parsed action invocation.
type Call struct {
	Name   string `json:"name"`
	Params Params `json:"params"`
}

// Models answer in two envelopes: the compact {"name","params"} form the
// prompts ask for, and the tool-calling {"function","parameters"} form
// many of them emit anyway. Both are accepted.
type callEnvelope struct {
	Name       string `json:"name"`
	Params     Params `json:"params"`
	Function   string `json:"function"`
	Parameters Params `json:"parameters"`
}

const callSchema = `{
	"type": "object",
	"anyOf": [
		{"required": ["name"]},
		{"required": ["function"]}
	],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"params": {"type": "object"},
		"function": {"type": "string", "minLength": 1},
		"parameters": {"type": "object"}
	}
}`

var compiledCallSchema = jsonschema.MustCompileString("call.json", callSchema)

const endKeyword = "END"

// ParseCall extracts an action call from raw model output. Model text is
// messy: the call may be wrapped in prose, suffixed with the end keyword, or
// missing closing braces. Repairs are only accepted when the repaired text
// parses; otherwise ErrNoCall is returned and the text stands as speech.
func ParseCall(raw string) (*Call, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimSpace(strings.TrimSuffix(text, endKeyword))

	// Some models emit a stray space inside the quoted action name.
	text = strings.ReplaceAll(text, `"action_ `, `"action_`)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 {
		return nil, ErrNoCall
	}

	var candidate string
	if end > start {
		candidate = text[start : end+1]
	} else {
		candidate = text[start:]
	}

	payload, ok := parseObject(candidate)
	if !ok {
		repaired, repairedOK := repairBraces(candidate)
		if !repairedOK {
			return nil, ErrNoCall
		}
		payload = repaired
	}

	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, ErrNoCall
	}
	if err := compiledCallSchema.Validate(decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCall, err)
	}

	var envelope callEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, ErrNoCall
	}
	call := Call{Name: envelope.Name, Params: envelope.Params}
	if call.Name == "" {
		call.Name = envelope.Function
	}
	if call.Params == nil {
		call.Params = envelope.Parameters
	}
	// Tool-calling models prefix the registered name.
	call.Name = strings.TrimPrefix(call.Name, "action_")
	if call.Name == "" {
		return nil, ErrNoCall
	}
	if call.Params == nil {
		call.Params = Params{}
	}
	return &call, nil
}

func parseObject(candidate string) (json.RawMessage, bool) {
	var probe map[string]any
	if err := json.Unmarshal([]byte(candidate), &probe); err != nil {
		return nil, false
	}
	return json.RawMessage(candidate), true
}

// repairBraces appends missing closing braces. The repair is discarded
// unless the result parses as an object.
func repairBraces(candidate string) (json.RawMessage, bool) {
	depth := 0
	inString := false
	escaped := false
	for _, r := range candidate {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
			}
		}
	}
	if depth <= 0 {
		return nil, false
	}
	repaired := candidate + strings.Repeat("}", depth)
	return parseObject(repaired)
}
