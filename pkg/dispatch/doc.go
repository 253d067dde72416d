// Package dispatch sends rendered payloads through a Sender and partitions
// the recipients into sent and failed.
//
// A Tracker calls the sender once per payload and never retries. The
// resulting Outcome is always an exact partition of the distinct payload
// emails: every address appears in exactly one of Sent or Failed.
//
//	tracker := dispatch.New(sender,
//		dispatch.WithPolicy(dispatch.Isolate),
//		dispatch.WithConcurrency(8),
//	)
//	out := tracker.Dispatch(ctx, payloads, "Quarterly update")
//	fmt.Println(out.Sent, out.Failed)
//
// # Failure policies
//
// HaltOnFailure, the default, stops at the first failed send and marks that
// payload and every remaining one as failed without attempting them. Their
// failure error matches ErrNotAttempted.
//
// Isolate attempts every payload and records each failure on its own. With
// WithConcurrency the sends run on a bounded worker group.
//
// When the context is cancelled, payloads not yet sent fail with the context
// error. An empty subject fails every payload with ErrNoSubject without
// calling the sender.
//
// # Composition
//
// A Composer turns a payload into an Email. The rendered body is sent as the
// plain text part and, unless disabled, converted from Markdown to sanitized
// HTML and optionally wrapped in an html/template layout.
package dispatch
