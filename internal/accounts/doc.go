// Package accounts stores users and members on gorm and serves as the
// engine's AccountProvider. Emails are stored lowercase and are unique within
// each table.
package accounts
