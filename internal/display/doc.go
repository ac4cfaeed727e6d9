// Package display holds the shared display state and its broadcast cell.
//
// Lumen has exactly one current display state. The Cell is a coalescing
// latest-value broadcast primitive: a subscriber that falls behind skips
// straight to the newest state instead of queuing intermediate ones. A
// viewer screen only ever cares about what should be on it right now.
package display
