package config

import (
	"github.com/Quidge/chatconform/internal/backend/testcontainer"
	"github.com/Quidge/chatconform/internal/client"
	"github.com/Quidge/chatconform/internal/factory"
	"github.com/Quidge/chatconform/internal/fixture"
)

// Defaults used when neither the project file, the environment nor a flag
// sets a value.
const (
	DefaultRuntime             = testcontainer.BackendType
	DefaultBaseImage           = factory.DefaultBaseImage
	DefaultModel               = factory.DefaultModel
	DefaultVisionModel         = factory.DefaultVisionModel
	DefaultCustomModel         = factory.DefaultCustomModel
	DefaultProvisioningTimeout = fixture.DefaultProvisioningTimeout
	DefaultRequestTimeout      = client.DefaultRequestTimeout
)
