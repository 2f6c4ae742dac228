// Package capability declares what each chat-completion client family supports
// and how the shared conformance battery treats what it does not.
//
// A Profile is fixed when it is built. Nothing in the harness derives support
// from the runtime type of a client; the profile attached to an instance is the
// only source of truth.
package capability

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Capability names an optional feature of a chat-completion client.
type Capability string

const (
	// ToolChoiceRequired forces the model to call a tool.
	ToolChoiceRequired Capability = "tool_choice_required"

	// JSONResponseFormat asks for a syntactically valid JSON reply.
	JSONResponseFormat Capability = "json_response_format"

	// JSONSchema constrains the reply to a caller-supplied JSON schema.
	JSONSchema Capability = "json_schema"

	// SingleImageBase64 sends one inline base64 image.
	SingleImageBase64 Capability = "single_image_base64"

	// MultipleImagesBase64 sends several inline base64 images in one message.
	MultipleImagesBase64 Capability = "multiple_images_base64"

	// SingleImagePublicURL sends one image by public URL.
	SingleImagePublicURL Capability = "single_image_public_url"

	// MultipleImagesPublicURL sends several images by public URL.
	MultipleImagesPublicURL Capability = "multiple_images_public_url"
)

// All lists every known capability in a stable order.
var All = []Capability{
	ToolChoiceRequired,
	JSONResponseFormat,
	JSONSchema,
	SingleImageBase64,
	MultipleImagesBase64,
	SingleImagePublicURL,
	MultipleImagesPublicURL,
}

// IsValid reports whether c is a known capability.
func (c Capability) IsValid() bool {
	return slices.Contains(All, c)
}

// Tier says how the battery treats a scenario whose capability is unsupported.
type Tier string

const (
	// TierHardSkip records the scenario as skipped without running it.
	TierHardSkip Tier = "hard_skip"

	// TierSoftReject runs the scenario and requires the client to refuse it
	// with an UnsupportedCapabilityError.
	TierSoftReject Tier = "soft_reject"
)

// IsValid reports whether t is a known tier.
func (t Tier) IsValid() bool {
	return t == TierHardSkip || t == TierSoftReject
}

// Mode is the decision the battery takes for one scenario.
type Mode int

const (
	// ModeRun exercises the scenario normally.
	ModeRun Mode = iota

	// ModeSkip records the scenario as skipped.
	ModeSkip

	// ModeExpectRejection runs the scenario and requires a rejection.
	ModeExpectRejection
)

func (m Mode) String() string {
	switch m {
	case ModeRun:
		return "run"
	case ModeSkip:
		return "skip"
	case ModeExpectRejection:
		return "expect-rejection"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Support is the declared support for one capability.
type Support struct {
	Supported bool
	// Tier only matters when Supported is false.
	Tier Tier
}

// Assertions toggles response checks that some families cannot satisfy.
type Assertions struct {
	ResponseID           bool
	FinishReason         bool
	PartialResponseCount bool
}

// ResponseTypes names the concrete response metadata and token usage shapes
// a family reports.
type ResponseTypes struct {
	Metadata reflect.Type
	Usage    reflect.Type
}

// Declaration is the mutable input used to build a Profile.
type Declaration struct {
	Family       string
	Capabilities map[Capability]Support
	Assertions   Assertions
	Types        ResponseTypes
}

// Profile is the immutable capability declaration of one client family.
type Profile struct {
	family     string
	support    map[Capability]Support
	assertions Assertions
	types      ResponseTypes
}

// NewProfile validates d and builds a Profile from a private copy of it.
// Capabilities missing from d are unsupported and hard-skipped.
func NewProfile(d Declaration) (Profile, error) {
	if d.Family == "" {
		return Profile{}, fmt.Errorf("profile family is required")
	}
	support := make(map[Capability]Support, len(All))
	for _, c := range All {
		support[c] = Support{Tier: TierHardSkip}
	}
	for c, s := range d.Capabilities {
		if !c.IsValid() {
			return Profile{}, fmt.Errorf("profile %s: unknown capability %q", d.Family, c)
		}
		if !s.Supported && !s.Tier.IsValid() {
			return Profile{}, fmt.Errorf("profile %s: capability %s has invalid tier %q", d.Family, c, s.Tier)
		}
		support[c] = s
	}
	return Profile{
		family:     d.Family,
		support:    support,
		assertions: d.Assertions,
		types:      d.Types,
	}, nil
}

// MustProfile is like NewProfile but panics on an invalid declaration.
// It is meant for declarations built into the binary.
func MustProfile(d Declaration) Profile {
	p, err := NewProfile(d)
	if err != nil {
		panic(err)
	}
	return p
}

// Declaration returns a copy of the data the profile was built from.
func (p Profile) Declaration() Declaration {
	return Declaration{
		Family:       p.family,
		Capabilities: maps.Clone(p.support),
		Assertions:   p.assertions,
		Types:        p.types,
	}
}

// Family returns the implementation family the profile describes.
func (p Profile) Family() string { return p.family }

// Support returns the declared support for c.
func (p Profile) Support(c Capability) Support {
	s, ok := p.support[c]
	if !ok {
		return Support{Tier: TierHardSkip}
	}
	return s
}

// Supports reports whether c is supported.
func (p Profile) Supports(c Capability) bool {
	return p.Support(c).Supported
}

// Mode decides how a scenario requiring c is treated. An empty capability
// means the scenario has no optional requirement and always runs.
func (p Profile) Mode(c Capability) Mode {
	if c == "" {
		return ModeRun
	}
	s := p.Support(c)
	switch {
	case s.Supported:
		return ModeRun
	case s.Tier == TierSoftReject:
		return ModeExpectRejection
	default:
		return ModeSkip
	}
}

// SupportsToolChoiceRequired reports whether forced tool calls are supported.
func (p Profile) SupportsToolChoiceRequired() bool { return p.Supports(ToolChoiceRequired) }

// SupportsJSONResponseFormat reports whether JSON replies can be requested.
func (p Profile) SupportsJSONResponseFormat() bool { return p.Supports(JSONResponseFormat) }

// SupportsJSONSchema reports whether schema-constrained replies are supported.
func (p Profile) SupportsJSONSchema() bool { return p.Supports(JSONSchema) }

// SupportsSingleImageInput reports whether one inline image is supported.
func (p Profile) SupportsSingleImageInput() bool { return p.Supports(SingleImageBase64) }

// SupportsMultipleImageInputs reports whether several inline images are supported.
func (p Profile) SupportsMultipleImageInputs() bool { return p.Supports(MultipleImagesBase64) }

// SupportsPublicImageURLs reports whether images can be passed by public URL,
// singly and in groups.
func (p Profile) SupportsPublicImageURLs() bool {
	return p.Supports(SingleImagePublicURL) && p.Supports(MultipleImagesPublicURL)
}

// AssertsResponseID reports whether responses must carry an id.
func (p Profile) AssertsResponseID() bool { return p.assertions.ResponseID }

// AssertsFinishReason reports whether responses must carry a finish reason.
func (p Profile) AssertsFinishReason() bool { return p.assertions.FinishReason }

// AssertsPartialResponseCount reports whether streaming callbacks are counted.
func (p Profile) AssertsPartialResponseCount() bool { return p.assertions.PartialResponseCount }

// MetadataType returns the concrete response metadata type of the family.
func (p Profile) MetadataType() reflect.Type { return p.types.Metadata }

// UsageType returns the concrete token usage type of the family.
func (p Profile) UsageType() reflect.Type { return p.types.Usage }

// Override describes a static configuration change to one profile.
type Override struct {
	Capabilities map[Capability]Support
	Assertions   *Assertions
}

// With returns a new profile with o applied. p is left unchanged.
func (p Profile) With(o Override) (Profile, error) {
	d := p.Declaration()
	for c, s := range o.Capabilities {
		d.Capabilities[c] = s
	}
	if o.Assertions != nil {
		d.Assertions = *o.Assertions
	}
	return NewProfile(d)
}
