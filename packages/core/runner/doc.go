// Package runner tracks every test of a run as a result in a test-management
// service.
//
// A Coordinator is fed a test collection (a tree of Case, Group and
// Generator nodes) and the lifecycle events of its execution:
//
//	Prepare / Declare   -> result filed as Scheduled or ToBeRun
//	OnStart             -> Running
//	OnSuccess, OnFailure, OnError, OnFinish -> Finished with an Outcome
//	Finalize            -> test runs closed
//
// Results are grouped into remote test runs, one by default or one per value
// of a metadata field. Metadata comes from each test's documentation via the
// parser package. Problems shaping a result are logged and never stop a run;
// a failing result service does, through TransportError.
//
// Execute runs a collection in process. Other hosts, such as the go test
// driver, call the hooks themselves.
package runner
