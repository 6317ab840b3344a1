// Package web streams stage snapshots to browsers over WebSocket and feeds
// browser input back into the stage.
//
// The server pushes a JSON snapshot of the whole stage at a fixed interval,
// skipping frames that did not change. Inbound messages carry user input:
// clicks, key transitions, the green flag, custom events and answers to
// questions posed by ask. The server owns no rendering; the browser draws
// whatever the snapshot describes.
package web
