package testkit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertStatusCode checks the response code.
func AssertStatusCode(t *testing.T, scenario *Scenario, got int) {
	t.Helper()
	assert.Equal(t, scenario.ExpectedCode, got,
		"[%s] HTTP status code mismatch", scenario.Name)
}

// AssertJSONBody compares expected and actual after decoding both, so key
// order and whitespace never matter. The string "<any>" in the expected file
// matches any value at that position, for generated ids and timestamps.
func AssertJSONBody(t *testing.T, scenario *Scenario, expected, actual []byte) {
	t.Helper()
	if len(expected) == 0 {
		return
	}

	var expVal, actVal interface{}
	require.NoError(t, json.Unmarshal(expected, &expVal),
		"[%s] expected response file is not valid JSON", scenario.Name)

	if !assert.NoError(t, json.Unmarshal(actual, &actVal),
		"[%s] actual response is not valid JSON\nbody: %s", scenario.Name, string(actual)) {
		return
	}

	assert.Equal(t, expVal, mask(expVal, actVal),
		"[%s] response body mismatch", scenario.Name)
}

// mask copies actual, replacing every position where expected holds "<any>".
func mask(expected, actual interface{}) interface{} {
	if s, ok := expected.(string); ok && s == "<any>" {
		return s
	}
	switch exp := expected.(type) {
	case map[string]interface{}:
		act, ok := actual.(map[string]interface{})
		if !ok {
			return actual
		}
		out := make(map[string]interface{}, len(act))
		for k, v := range act {
			if ev, ok := exp[k]; ok {
				out[k] = mask(ev, v)
			} else {
				out[k] = v
			}
		}
		return out
	case []interface{}:
		act, ok := actual.([]interface{})
		if !ok {
			return actual
		}
		out := make([]interface{}, len(act))
		for i, v := range act {
			if i < len(exp) {
				out[i] = mask(exp[i], v)
			} else {
				out[i] = v
			}
		}
		return out
	}
	return actual
}

// AssertMocksCalled fails the test for every step whose call count is off.
func AssertMocksCalled(t *testing.T, scenario *Scenario, mt *MockTransport) {
	t.Helper()
	for _, err := range mt.AssertAllCalled() {
		assert.NoError(t, err, "[%s]", scenario.Name)
	}
}
