package capability

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMetadata struct{ ID string }
type testUsage struct{ Total int }

func testDeclaration() Declaration {
	return Declaration{
		Family: "fake",
		Capabilities: map[Capability]Support{
			JSONResponseFormat:   {Supported: true},
			SingleImageBase64:    {Supported: true},
			ToolChoiceRequired:   {Tier: TierSoftReject},
			JSONSchema:           {Tier: TierHardSkip},
			MultipleImagesBase64: {Tier: TierHardSkip},
		},
		Assertions: Assertions{FinishReason: true},
		Types: ResponseTypes{
			Metadata: reflect.TypeFor[testMetadata](),
			Usage:    reflect.TypeFor[testUsage](),
		},
	}
}

func TestProfileMode(t *testing.T) {
	p, err := NewProfile(testDeclaration())
	require.NoError(t, err)

	tests := []struct {
		capability Capability
		want       Mode
	}{
		{"", ModeRun},
		{JSONResponseFormat, ModeRun},
		{SingleImageBase64, ModeRun},
		{ToolChoiceRequired, ModeExpectRejection},
		{JSONSchema, ModeSkip},
		{MultipleImagesBase64, ModeSkip},
		// Undeclared capabilities default to hard-skip.
		{SingleImagePublicURL, ModeSkip},
		{MultipleImagesPublicURL, ModeSkip},
	}

	for _, tt := range tests {
		t.Run(string(tt.capability), func(t *testing.T) {
			assert.Equal(t, tt.want, p.Mode(tt.capability))
		})
	}
}

func TestProfileAccessors(t *testing.T) {
	p := MustProfile(testDeclaration())

	assert.Equal(t, "fake", p.Family())
	assert.True(t, p.SupportsJSONResponseFormat())
	assert.True(t, p.SupportsSingleImageInput())
	assert.False(t, p.SupportsToolChoiceRequired())
	assert.False(t, p.SupportsJSONSchema())
	assert.False(t, p.SupportsMultipleImageInputs())
	assert.False(t, p.SupportsPublicImageURLs())
	assert.True(t, p.AssertsFinishReason())
	assert.False(t, p.AssertsResponseID())
	assert.False(t, p.AssertsPartialResponseCount())
	assert.Equal(t, reflect.TypeFor[testMetadata](), p.MetadataType())
	assert.Equal(t, reflect.TypeFor[testUsage](), p.UsageType())
}

func TestProfileIsImmutable(t *testing.T) {
	d := testDeclaration()
	p := MustProfile(d)

	// Mutating the input after construction must not leak into the profile.
	d.Capabilities[JSONSchema] = Support{Supported: true}
	assert.False(t, p.SupportsJSONSchema())

	// Neither may mutating an exported copy.
	out := p.Declaration()
	out.Capabilities[ToolChoiceRequired] = Support{Supported: true}
	assert.False(t, p.SupportsToolChoiceRequired())
}

func TestProfileWith(t *testing.T) {
	p := MustProfile(testDeclaration())

	q, err := p.With(Override{
		Capabilities: map[Capability]Support{JSONSchema: {Supported: true}},
		Assertions:   &Assertions{ResponseID: true},
	})
	require.NoError(t, err)

	assert.True(t, q.SupportsJSONSchema())
	assert.True(t, q.AssertsResponseID())
	assert.False(t, q.AssertsFinishReason())

	assert.False(t, p.SupportsJSONSchema(), "original profile changed")
	assert.False(t, p.AssertsResponseID(), "original profile changed")
}

func TestNewProfileRejectsInvalidDeclarations(t *testing.T) {
	tests := []struct {
		name string
		d    Declaration
	}{
		{"missing family", Declaration{}},
		{"unknown capability", Declaration{
			Family:       "fake",
			Capabilities: map[Capability]Support{"telepathy": {Supported: true}},
		}},
		{"invalid tier", Declaration{
			Family:       "fake",
			Capabilities: map[Capability]Support{JSONSchema: {Tier: "maybe"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProfile(tt.d)
			assert.Error(t, err)
		})
	}
}

func TestUnsupportedCapabilityError(t *testing.T) {
	err := Reject("ollama", JSONSchema, "schema given")
	assert.True(t, IsUnsupported(err))
	assert.True(t, IsUnsupported(fmt.Errorf("chat failed: %w", err)))
	assert.False(t, IsUnsupported(fmt.Errorf("connection refused")))
	assert.Contains(t, err.Error(), "ollama does not support json_schema")
}
