package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(AlertsTotal.WithLabelValues("orphan"))
	AlertsTotal.WithLabelValues("orphan").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(AlertsTotal.WithLabelValues("orphan")))
}

func TestHandler(t *testing.T) {
	CyclesTotal.WithLabelValues("ok").Inc()

	app := fiber.New()
	app.Get("/metrics", Handler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "reconcile_cycles_total")
}
