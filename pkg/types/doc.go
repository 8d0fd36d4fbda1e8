/*
Package types defines the shared data model for the overlay node: routing
information records (NRI and RRI), overlay DNS record schemas, app and
artifact records, and the error kinds that every boundary maps onto
transport and HTTP semantics.

Records validate themselves; constructors only fill defaults. Everything in
this package is plain data with no behavior beyond validation, so any
component can depend on it without import cycles.
*/
package types
