package harness

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Quidge/chatconform/internal/config"
	"github.com/Quidge/chatconform/internal/factory"
	"github.com/Quidge/chatconform/internal/fixture"
	"github.com/Quidge/chatconform/internal/state"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Merge(config.DefaultProjectConfig(), config.EnvConfig{StateDB: ":memory:"}, config.FlagOverrides{})
	require.NoError(t, err)
	return cfg
}

func TestExternalEndpointSkipsRuntime(t *testing.T) {
	body := map[string]any{"models": []map[string]string{{"name": "llama3.1:latest"}}}
	httphelpers.WithServer(httphelpers.HandlerWithJSONResponse(body, nil), func(server *httptest.Server) {
		cfg := testConfig(t)
		cfg.ExternalURL = server.URL
		cfg.Runtime = "not-installed"

		h, err := New(cfg, zerolog.Nop())
		require.NoError(t, err)
		defer h.Close(context.Background())

		assert.Nil(t, h.Backend)
		require.NoError(t, h.Start(context.Background()))

		inst, err := h.Factory.Default(context.Background(), "ollama", factory.RoleTools)
		require.NoError(t, err)
		assert.Equal(t, fixture.SourceExternal, inst.Fixture().Source)

		models, err := inst.Client().ListModels(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"llama3.1:latest"}, models)
	})
}

func TestUnknownRuntime(t *testing.T) {
	cfg := testConfig(t)
	cfg.Runtime = "podman"

	_, err := New(cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown backend type: podman")
}

func TestDockerRuntimeIsRegistered(t *testing.T) {
	h, err := New(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer h.Close(context.Background())

	assert.NotNil(t, h.Backend)
	assert.False(t, h.Registry.External())
	assert.Len(t, h.Factory.DefaultKeys(), 2)
}

func TestProfileOverrideForUnknownFamily(t *testing.T) {
	cfg := testConfig(t)
	cfg.Profiles = map[string]config.ProfileConfig{"bedrock": {}}

	_, err := New(cfg, zerolog.Nop())
	assert.ErrorContains(t, err, `"bedrock"`)
}

func TestFixtureModelsFollowConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Fixtures.Vision = "llava"

	h, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer h.Close(context.Background())

	model, err := h.Factory.ModelFor(factory.RoleVision)
	require.NoError(t, err)
	assert.Equal(t, "llava", model)
}

func TestInterruptedFixturesAreFailed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := state.Open(path)
	require.NoError(t, err)

	seed := func(startedAt time.Time) string {
		id, err := state.GenerateID()
		require.NoError(t, err)
		require.NoError(t, db.CreateFixture(&state.Fixture{
			ID:        id,
			BaseImage: factory.DefaultBaseImage,
			Model:     factory.DefaultModel,
			Backend:   "docker",
			Status:    state.StatusProvisioning,
			StartedAt: startedAt,
		}))
		return id
	}
	stale := seed(time.Now().Add(-2 * time.Hour))
	live := seed(time.Now())
	require.NoError(t, db.Close())

	cfg := testConfig(t)
	cfg.StateDB = path
	cfg.ExternalURL = "http://ollama.example:11434"
	cfg.ProvisioningTimeout = time.Hour

	h, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer h.Close(context.Background())

	f, err := h.DB.GetFixture(stale)
	require.NoError(t, err)
	assert.Equal(t, state.StatusFailed, f.Status)
	assert.Equal(t, "interrupted", f.Error)

	f, err = h.DB.GetFixture(live)
	require.NoError(t, err)
	assert.Equal(t, state.StatusProvisioning, f.Status)
}
