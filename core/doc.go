// Package core defines the shared domain types of the orchestration engine:
// context entries, structured decisions, execution result envelopes, chain
// steps, the error taxonomy, the outbound event protocol and the process-wide
// model-call admission gate. Higher-level packages (session, gateway, executor,
// agent) depend on core; core depends on nothing but logging.
package core
