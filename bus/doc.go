// Package bus implements the named completion/message event fan-out the
// rewritten scripts and their host entities communicate through.
//
// A waited call suspends its script on a one-shot listener for an event name
// unique to the invocation's triggering id; the host releases it by
// publishing that name. Message broadcasts use persistent subscriptions, and
// Publish reports how many listeners received the event so
// broadcast-and-wait can count completions.
package bus
