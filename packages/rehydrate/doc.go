// Package rehydrate replays a data-driven test invocation from the
// attributes stored on its result.
//
// A replay descriptor names the package the test lives in, the function (or
// method) to call, its JSON encoded arguments and, for methods, a receiver
// given as a registered type name plus JSON state. Go cannot load code by
// path at runtime, so every replayable package registers a Module with the
// functions and receiver factories it exposes; the descriptor selects a
// module by location first and by name second.
//
// Fixtures run around the call the way a suite would: module setup, then the
// receiver's SetupSuite and SetupTest, and the matching teardowns in reverse
// order. Teardowns always run once their setup succeeded.
package rehydrate
