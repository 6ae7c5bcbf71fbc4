// Package batch runs concurrent IP report lookups and streams the results.
//
// One Execute call fans a list of targets out to a bounded worker pool
// (min(MaxConcurrency, len(targets)) workers), each worker calling the API
// client once per target, and fans the completions back in on the caller's
// goroutine, which is the only place a Sink is ever called from.
//
// Example usage:
//
//	exec := batch.NewExecutor(batch.ClientFactory(client.DefaultConfig("")), batch.DefaultConfig())
//	token := batch.NewToken()
//	summary, err := exec.Execute(ctx, batch.Request{
//		Targets:    []string{"8.8.8.8", "1.1.1.1"},
//		Credential: apiKey,
//	}, sink, token)
//
// Guarantees:
//   - Completions arrive in any order, never in input order by contract.
//   - Every target yields exactly one OnSuccess or OnFailure unless the run is
//     cancelled, in which case later completions are dropped.
//   - A per-target failure never aborts the batch.
//   - OnComplete is called exactly once and is always the last call.
//   - Empty credentials and empty target lists are rejected before any worker
//     starts, with ConfigurationError and PreconditionError respectively.
//
// Coordinator layers the "one active batch" rule on top: starting a new batch
// stops the previous one and waits for its OnComplete first.
package batch
