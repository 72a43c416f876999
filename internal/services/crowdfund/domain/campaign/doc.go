// Package campaign is the campaign aggregate: funding rounds, the share
// ledger, escrow records and the dividend ledger.
//
// Decide validates a command against replayed state and returns either a
// rejection or the complete set of events and value transfers to commit.
// Fold applies committed events. Nothing in this package performs I/O, so a
// rejected command never leaves partial state behind.
package campaign
