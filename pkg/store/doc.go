/*
Package store persists node state in two layers.

Routing-information records live as one zlib-compressed JSON blob per id:

	<data-dir>/<nri-subdir>/<node_id>.bin
	<data-dir>/<rri-subdir>/<relay_id>.bin
	<data-dir>/<local-subdir>/nri.bin       (this node's own record)
	<data-dir>/<local-subdir>/<name>.key    (key material, plain text)

created_at, last_updated, and version are stamped on save; create is
conflict-checked while update upserts and bumps the version.

Everything else (overlay DNS record slots, test artifacts) lives in an
embedded bbolt database with JSON values, one bucket per record family.
*/
package store
