// Package planning implements the goal-oriented planning subsystem: an
// HTN-style planner that decomposes task networks into operator sequences,
// a failure-rate oracle that prunes historically bad decompositions, a plan
// memory that short-circuits planning for recurring goal shapes, pluggable
// goal strategies, and the manager that owns the authoritative goal set and
// persists it through the storage layer.
//
// The planner is deliberately greedy and depth-first: one method per
// compound task, no backtracking across alternatives, and a hard recursion
// ceiling. It is a faithful-but-limited decomposer, not a full HTN solver.
package planning
