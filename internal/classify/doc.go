// Package classify resolves discovered items against the catalog, deciding
// whether each is a new object, a moved one, or a copy of an existing one.
//
// Identity resolution follows a fixed precedence: exact object key, then
// provider-assigned file id, then a size/mtime fingerprint shortlist narrowed
// by SHA-256 content verification. A resolved candidate is split into move
// versus copy by re-listing its recorded location. Per-item failures degrade
// to CreateNew with confidence 0 rather than aborting enumeration.
package classify
