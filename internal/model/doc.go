// Package model invokes a language model for an agent.
//
// An Invoker takes a transcript and returns a channel of agent events in
// generation order. Two backends are provided:
//
//   - Echo answers offline and remembers names stated earlier in the
//     transcript, which makes conversation memory visible in demos.
//   - ChatCompletions calls any OpenAI-compatible /chat/completions endpoint.
//
// New picks the backend from configuration:
//
//	inv, err := model.New(cfg, logger)
//	events, err := inv.Invoke(ctx, &model.Request{Spec: spec, Transcript: msgs})
//	for ev := range events {
//	    // ...
//	}
package model
