// Package personalize renders one compiled template over a batch of recipients.
//
// Two binding modes are supported. ModePersonalized renders the template
// against each recipient's own fields and yields one payload per recipient in
// input order. ModeSingle renders once against the first recipient and reuses
// that body verbatim for every recipient, so destinations differ but the body
// does not:
//
//	tpl, _ := binder.Parse("Hi {{ first_name }}")
//	res, err := personalize.Personalize(tpl, personalize.FromRecords(records), personalize.ModePersonalized)
//
// Recipient render failures abort the batch by default (FailFast). With
// WithPolicy(Collect) failing recipients are reported in Result.Skipped and
// the rest still render. A single-mode base render failure is always fatal.
package personalize
