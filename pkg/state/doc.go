// Package state defines the persistence contract for cohort field override
// records, plus a small in-memory implementation.
//
// Responsibilities:
//   - Store only persists individual override records keyed by
//     (cohort id, block location, field name).
//   - Decoding of the serialized values and caching of resolved mappings stay
//     in the root ccx package; Store implementations never see decoded
//     values.
//
// Data flow:
//
//	ccx.Overrides -> Store.Filter / GetOrCreate / Save / Get / Delete
//
// Deterministic keys:
//
//	Key.Identifier() provides a canonical key format
//	(`cohort/<id>/<location>/<field>`) that key-value adapters (memory,
//	badger) use directly. Relational adapters use the tuple columns instead.
package state
