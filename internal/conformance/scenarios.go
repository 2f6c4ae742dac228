package conformance

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/Quidge/chatconform/internal/capability"
	"github.com/Quidge/chatconform/internal/client"
	"github.com/Quidge/chatconform/internal/factory"
	"github.com/Quidge/chatconform/internal/restype"
)

// Scenario is one check run against every family. Requires names the
// optional capability it exercises; an empty Requires always runs.
type Scenario struct {
	Name     string
	Requires capability.Capability
	Role     factory.Role
	Run      func(ctx context.Context, inst *client.Instance) error
}

// DefaultScenarios returns the built-in scenarios.
func DefaultScenarios(r *restype.Resolver) []Scenario {
	return []Scenario{
		{Name: "model installed", Role: factory.RoleTools, Run: modelInstalled},
		{Name: "vision model installed", Role: factory.RoleVision, Requires: capability.SingleImageBase64, Run: modelInstalled},
		{Name: "tool choice required", Role: factory.RoleTools, Requires: capability.ToolChoiceRequired, Run: checkParams(client.Parameters{
			ToolChoice: client.ToolChoiceRequired,
		})},
		{Name: "json response format", Role: factory.RoleTools, Requires: capability.JSONResponseFormat, Run: checkParams(client.Parameters{
			ResponseFormat: client.ResponseFormat{Type: client.ResponseFormatJSON},
		})},
		{Name: "json schema", Role: factory.RoleTools, Requires: capability.JSONSchema, Run: checkParams(client.Parameters{
			ResponseFormat: client.ResponseFormat{Type: client.ResponseFormatJSON, Schema: personSchema},
		})},
		{Name: "response types", Role: factory.RoleTools, Run: responseTypes(r)},
	}
}

var personSchema = []byte(`{"type":"object","properties":{"name":{"type":"string"},"age":{"type":"integer"}},"required":["name","age"]}`)

// modelInstalled checks that the fixture serves the instance's model.
func modelInstalled(ctx context.Context, inst *client.Instance) error {
	models, err := inst.Client().ListModels(ctx)
	if err != nil {
		return err
	}
	want := inst.ModelName()
	for _, m := range models {
		if m == want || strings.TrimSuffix(m, ":latest") == want {
			return nil
		}
	}
	return fmt.Errorf("model %s is not served by %s (have %v)", want, inst.Fixture().Endpoint, models)
}

func checkParams(p client.Parameters) func(context.Context, *client.Instance) error {
	return func(_ context.Context, inst *client.Instance) error {
		return inst.Check(p)
	}
}

// responseTypes checks that the resolved shapes carry the common fields and
// agree with the instance's profile.
func responseTypes(r *restype.Resolver) func(context.Context, *client.Instance) error {
	return func(_ context.Context, inst *client.Instance) error {
		md, usage, err := r.Resolve(inst)
		if err != nil {
			return err
		}
		if md != inst.Profile().MetadataType() || usage != inst.Profile().UsageType() {
			return fmt.Errorf("resolved types %s/%s disagree with profile %s/%s",
				md, usage, inst.Profile().MetadataType(), inst.Profile().UsageType())
		}
		if !extends(md, reflect.TypeFor[client.ResponseMetadata]()) {
			return fmt.Errorf("%s does not carry client.ResponseMetadata", md)
		}
		if !extends(usage, reflect.TypeFor[client.TokenUsage]()) {
			return fmt.Errorf("%s does not carry client.TokenUsage", usage)
		}
		return nil
	}
}

// extends reports whether t is base or embeds it.
func extends(t, base reflect.Type) bool {
	if t == base {
		return true
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	f, ok := t.FieldByName(base.Name())
	return ok && f.Anonymous && f.Type == base
}
