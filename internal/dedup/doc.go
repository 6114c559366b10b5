// Package dedup decides whether a proposed entry is a near-repeat of the
// user's most recent one, refusing accidental double submissions within a
// short trailing window.
package dedup
