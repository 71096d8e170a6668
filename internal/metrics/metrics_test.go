package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin(OutcomeSuccess)
	c.RecordLogin(OutcomeFailure)
	c.RecordLogin(OutcomeFailure)
	c.RecordRegistration(OutcomeSuccess)
	c.RecordRefresh(OutcomeFailure)
	c.RecordLogout()
	c.RecordVerifyFailure("expired")
	c.RecordHashDuration(30 * time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.logins.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.logins.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.registrations.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.refreshes.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.logouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.verifyFail.WithLabelValues("expired")))
}

func TestHandler_ServesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordLogout()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "todolist_auth_logouts_total 1"))
}
