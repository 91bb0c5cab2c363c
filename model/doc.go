// Package model defines the normalized chat-completion interface the gateway
// drives. Providers adapt their SDKs behind Model, emitting responses on a
// channel so streaming and non-streaming calls share one shape. MockModel
// offers deterministic canned completions for tests and examples.
package model
