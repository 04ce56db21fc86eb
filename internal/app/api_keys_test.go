package app

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"csaplanner.dev/internal/appconf"
)

func TestBlankKeyIsInvalid(t *testing.T) {
	app := &Application{
		Config: appconf.Config{
			ApiKeys: []string{"key"},
		},
	}
	assert.True(t, app.IsInvalidAPIKey(""))
}

func TestConfiguredKeys(t *testing.T) {
	app := &Application{
		Config: appconf.Config{
			ApiKeys: []string{"alpha", "beta"},
		},
	}

	assert.False(t, app.IsInvalidAPIKey("beta"))
	assert.True(t, app.IsInvalidAPIKey("gamma"))

	assert.False(t, app.RequestHasInvalidAPIKey(httptest.NewRequest("GET", "/api/health?key=alpha", nil)))
	assert.True(t, app.RequestHasInvalidAPIKey(httptest.NewRequest("GET", "/api/health", nil)))
}
