// Package models holds the GORM rows behind the invoice aggregate. The
// domain types carry no ORM tags; InvoiceModel converts with ToDomain and
// FromDomain, and AllModels lists the tables for AutoMigrate.
package models
