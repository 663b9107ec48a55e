package main

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knieriem/tinygo-gem/efm32gg/eth/internal/gem"
	"github.com/knieriem/tinygo-gem/internal/test"
)

func TestDriverCollector(t *testing.T) {
	s := gem.Stats{RxFrames: 7, TxErrors: 2, Dangling: 1}
	c := newDriverCollector("gemsim", "", func() gem.Stats { return s })

	assert.Equal(t, 14, testutil.CollectAndCount(c))
	err := testutil.CollectAndCompare(c, strings.NewReader(`
# HELP gemsim_rx_frames_total Frames passed to the network stack
# TYPE gemsim_rx_frames_total counter
gemsim_rx_frames_total 7
# HELP gemsim_tx_errors_total Frames reported as failed by the MAC
# TYPE gemsim_tx_errors_total counter
gemsim_tx_errors_total 2
`), "gemsim_rx_frames_total", "gemsim_tx_errors_total")
	assert.NoError(t, err)

	s.RxFrames = 9
	assert.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(`
# HELP gemsim_rx_frames_total Frames passed to the network stack
# TYPE gemsim_rx_frames_total counter
gemsim_rx_frames_total 9
`), "gemsim_rx_frames_total"), "counters are read at scrape time")
}

func TestStatsServer(t *testing.T) {
	c := defaultConfig().Stats
	c.Interval = time.Hour
	updates := 0
	srv := newStatsServer(test.NewLogger(), c, "1.2.3",
		func() gem.Stats { return gem.Stats{TxFrames: 5} },
		func(r metrics.Registry) {
			updates++
			metrics.GetOrRegisterGauge("wire.rx.frames", r).Update(11)
		})
	require.NoError(t, srv.flush())
	assert.Equal(t, 1, updates)

	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	b, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	body := string(b)
	assert.Contains(t, body, "gemsim_tx_frames_total 5")
	assert.Contains(t, body, `gemsim_info{goversion=`)
	assert.Contains(t, body, `version="1.2.3"`)
	assert.Contains(t, body, "wire_rx_frames 11")
}
