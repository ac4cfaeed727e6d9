package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// CountConnection records a WebSocket viewer connecting or disconnecting.
// delta is +1 on connect, -1 on disconnect.
func (c *Client) CountConnection(delta int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"display_connections",
		nil,
		map[string]interface{}{"delta": delta},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// CountStateReplace records a successful display state replacement.
func (c *Client) CountStateReplace(source string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"display_state",
		map[string]string{"source": source},
		map[string]interface{}{"replacements": 1},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// CountAuthFailure records a failed login or authorisation check.
// kind is "login" or "authorize".
func (c *Client) CountAuthFailure(kind string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"auth_failures",
		map[string]string{"kind": kind},
		map[string]interface{}{"count": 1},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom measurement with full control over tags and
// fields, for telemetry that does not fit the counters above.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
