// Package store holds the state owned by the saga services: reserved stock
// per product and the materialized status per order.
//
// Every store is safe for concurrent use and serializes read-modify-write
// per key. There is no lock spanning keys and no transaction spanning stores.
package store
