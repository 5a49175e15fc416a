// Package domain holds campaign and membership domain types and the pure
// functions that create and validate them. Persistence and coordination live
// in the service and storage layers.
package domain
