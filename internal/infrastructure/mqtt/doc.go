// Package mqtt publishes Lumen's display state to an MQTT broker.
//
// The mirror is optional and one-way: every replacement of the display
// state is published retained, so signage integrations can follow the
// current state without holding a WebSocket. A status topic with a Last
// Will message signals whether Lumen is online.
package mqtt
