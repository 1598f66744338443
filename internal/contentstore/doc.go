// Package contentstore abstracts the external content source files are
// ingested from: directory listing, lazy paginated enumeration, and byte
// retrieval. The Local implementation serves a directory tree on the local
// filesystem or a sync-provider mount.
package contentstore
