// Package models defines the domain entities shared by the sync engine, the ledger and run history.
//
// The package contains two categories of types:
//
// 1. Playlist data fetched from the video host
//   - [Playlist] : playlist metadata with its ordered entries
//   - [Item] : one playlist entry, identified by its canonical watch URL
//
// 2. Run history persisted to SQLite
//   - [Run] : one sync invocation with counts and final status
//   - [Failure] : an item that exhausted its retries during a run
//
// Identity is always [Item.ID]. Titles are display strings and may collide.
package models
