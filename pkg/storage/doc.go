// Package storage provides the SQLite-backed state store.
//
// SQLiteStore keeps three kinds of state in one database:
//
//   - engine lifecycle records (engine.Store), written with a revision
//     compare-and-set;
//   - the singleton go-live row with id 1 (golive.Store), created with both
//     flags off when the database is first opened and updated inside an
//     IMMEDIATE transaction;
//   - KPI events and tripwire evaluations (tripwire.Store).
//
// Example:
//
//	store, err := storage.Open("/var/lib/heimdall/state.db")
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	lifecycle := engine.NewLifecycle(store)
//	gate := golive.NewGate(store)
package storage
