// Package notify is the notifier gateway: it delivers alert events as
// formatted messages to webhook endpoints (Microsoft Teams MessageCards
// with an OpenUri action button, Slack text messages, or a generic JSON
// POST).
//
// Delivery is fire-and-forget: the engine commits its dedup entry before
// delivery, so a failed send is logged and counted but never retried and
// never re-fires the alert.
package notify
