package resilience

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeConstructors(t *testing.T) {
	success := Success("delivered")
	assert.True(t, success.OK)
	assert.False(t, success.Mocked)
	assert.False(t, success.DryRun)
	assert.Equal(t, "delivered", success.Data)
	assert.Nil(t, success.Error)

	mocked := MockedSuccess("simulated")
	assert.True(t, mocked.OK)
	assert.True(t, mocked.Mocked)

	dryRun := DryRunSuccess("staged only")
	assert.True(t, dryRun.OK)
	assert.True(t, dryRun.DryRun)
}

func TestFailureEnvelopeCarriesKind(t *testing.T) {
	envelope := Failure[string](DependencyUnavailableError("issues", nil))

	assert.False(t, envelope.OK)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, KindDependencyUnavailable, envelope.Error.Kind)
	assert.Contains(t, envelope.Error.Message, "issues")
}

func TestEnvelopeJSONOmitsModeFlagsWhenUnset(t *testing.T) {
	raw, err := json.Marshal(Success("ok"))
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "mocked")
	assert.NotContains(t, string(raw), "dryRun")

	raw, err = json.Marshal(DryRunSuccess("ok"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"dryRun":true`)
}
