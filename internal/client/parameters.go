package client

import (
	"encoding/json"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/Quidge/chatconform/internal/capability"
)

// DefaultRequestTimeout bounds one request to a fixture endpoint.
const DefaultRequestTimeout = 180 * time.Second

// ToolChoice controls whether the model may or must call a tool.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
)

// ResponseFormatType selects the shape of the model's reply.
type ResponseFormatType string

const (
	ResponseFormatText ResponseFormatType = "text"
	ResponseFormatJSON ResponseFormatType = "json"
)

// ResponseFormat asks for a reply format. A JSON format with a Schema asks
// for schema-constrained output.
type ResponseFormat struct {
	Type   ResponseFormatType
	Schema json.RawMessage
}

// Parameters is the request-parameter set a model instance is bound to.
// Unset optional fields fall back to documented defaults at creation.
type Parameters struct {
	ModelName       ldvalue.OptionalString
	Temperature     *float64
	MaxOutputTokens ldvalue.OptionalInt
	Timeout         time.Duration
	ToolChoice      ToolChoice
	ResponseFormat  ResponseFormat
}

// Float returns a pointer to v, for Parameters.Temperature.
func Float(v float64) *float64 {
	return &v
}

// RequiredCapabilities lists the optional capabilities a request with these
// parameters exercises.
func (p Parameters) RequiredCapabilities() []capability.Capability {
	var caps []capability.Capability
	if p.ToolChoice == ToolChoiceRequired {
		caps = append(caps, capability.ToolChoiceRequired)
	}
	if p.ResponseFormat.Type == ResponseFormatJSON {
		if len(p.ResponseFormat.Schema) > 0 {
			caps = append(caps, capability.JSONSchema)
		} else {
			caps = append(caps, capability.JSONResponseFormat)
		}
	}
	return caps
}
