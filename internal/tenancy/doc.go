// Package tenancy guarantees that a unit of work scoped to one tenant can only
// touch that tenant's rows.
//
// Every request resolves its tenant's isolation strategy, borrows one physical
// connection from that tenant's pool and wraps it in a Facade. The Facade
// verifies the session tenant context before each statement, rejects
// destructive raw SQL, and reports violations to an Auditor that writes
// through a separate platform connection.
package tenancy
