// Package requestlifecycle implements the citizen request (PQRSD) lifecycle
// inside the citizen-services context.
//
// The module owns intake, the role-scoped state machine from Pending to
// Finalized, business-day deadlines, the append-only audit trail and live
// change notification. Business rules stay in the domain and application
// layers; persistence, transport and telemetry sit behind ports and adapters.
package requestlifecycle
