// Package harness checks that replicas converge.
//
// It has two parts. Verify replays one set of logs in several ways and
// compares the resulting states; the verify command runs it on a real
// repository. Run executes a scenario in which several simulated replicas
// append events and exchange log files, then evaluates assertions on what
// each replica sees.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: concurrent_titles
//	description: "Both replicas retitle the same issue"
//	replicas: [ana, ben]
//	steps:
//	  - do: create
//	    replica: ana
//	    ref: crash
//	    title: Crash on start
//	  - do: pull
//	    replica: ben
//	    from: ana
//	  - do: title
//	    replica: ben
//	    issue: crash
//	    title: Crash at startup
//	  - do: sync
//	assertions:
//	  - type: converged
//	  - type: issue
//	    issue: crash
//	    expect: { title: Crash at startup, comments: 0 }
//
// Issues and comments are named by the ref of the step that created them.
// A pull merges every log file of one replica into another the way git does
// with the merge driver; sync makes every replica pull from every other.
//
// # Assertion Types
//
//   - converged: every replica has the same events and the same state digest
//   - issue: the issue has the expected fields (subset match)
//   - issue_count: number of issues
//   - event_count: number of events
//   - ambiguities: number of concurrent edits resolved by order
//
// Assertions apply to every replica unless one is named.
//
// # Determinism
//
// Each replica has its own deterministic clock and in-memory repository, so
// a scenario produces the same event ids on every run and its final state
// can be compared with a golden file.
package harness
