// Package lostfound implements the lost-and-found board: posts describing
// lost or found items, owned by the user who created them.
//
// The package separates the pure domain rules (validation, patch merging)
// from the Store boundary so the HTTP surface and the persistence layer can
// evolve independently.
package lostfound
