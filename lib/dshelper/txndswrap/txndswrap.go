// Package txndswrap defines the datastore interface the auction daemon
// depends on: basic transactions plus extended (seekable) queries.
package txndswrap

import (
	ds "github.com/ipfs/go-datastore"
	dsextensions "github.com/textileio/go-datastore-extensions"
)

// TxnDatastore is a datastore supporting transactions and extended queries.
type TxnDatastore interface {
	ds.TxnDatastore
	dsextensions.DatastoreExtensions
}
