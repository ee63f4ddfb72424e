// Package storage opens the relational database behind the API and provides a
// generic gorm-backed repository used by the account, catalog and session
// stores.
package storage
