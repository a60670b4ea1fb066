// package models defines the canonical shapes returned by the query layer.
//
// Every upstream Spotify resource is normalized into one of these types before
// it leaves the service; the raw wire JSON never crosses a package boundary.
package models
