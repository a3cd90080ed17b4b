// Package engine contains the simulation loop and network orchestration.
//
// ARCHITECTURAL RULE: the engine never mutates domain state directly.
// Consumers draw from the tower, the tower notifies its subscribers, and
// pumps answer notifications with deliveries that the engine routes back
// into the tower. The engine only drives the clock and records what it
// observes.
package engine
