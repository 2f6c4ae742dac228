package client

import (
	"github.com/Quidge/chatconform/internal/capability"
	"github.com/Quidge/chatconform/internal/fixture"
)

// Instance is a client bound to one fixture endpoint, one parameter set and
// the capability profile of its family.
type Instance struct {
	client  Client
	params  Parameters
	profile capability.Profile
	handle  fixture.Handle
}

// NewInstance binds c. params should already carry the effective model name.
func NewInstance(c Client, params Parameters, profile capability.Profile, handle fixture.Handle) *Instance {
	return &Instance{client: c, params: params, profile: profile, handle: handle}
}

// Client returns the bound client.
func (i *Instance) Client() Client { return i.client }

// Family returns the implementation family.
func (i *Instance) Family() string { return i.client.Family() }

// ModelName returns the effective model name.
func (i *Instance) ModelName() string { return i.client.ModelName() }

// Parameters returns the bound parameters, with defaults filled in.
func (i *Instance) Parameters() Parameters { return i.params }

// Profile returns the capability profile fixed at creation.
func (i *Instance) Profile() capability.Profile { return i.profile }

// Fixture returns the handle the instance is bound to.
func (i *Instance) Fixture() fixture.Handle { return i.handle }

// Check runs the client's fail-closed parameter check.
func (i *Instance) Check(p Parameters) error { return i.client.CheckParameters(p) }
