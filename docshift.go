/*
Docshift Migrations

The docshift package copies every document of a source collection
into a destination collection whose server may reject requests for
exceeding a provisioned request rate, as Cosmos DB does. Documents
are never transformed; the destination receives each source document
as-is.

Stream

A Stream is one run. It opens a cursor over the source, reads one
server batch at a time and hands each batch to a Dispatcher. It never
reads the next batch before the current one has fully settled.
Throttled cursor operations pause for a jittered interval and retry
at the same cursor position.

Dispatcher and Writer

The Dispatcher starts one Writer per document of a batch and waits
for all of them. A Writer retries throttled inserts with a fresh
jittered pause, up to Options.MaxAttempts attempts, and reports any
other error as fatal. A fatal error cancels the rest of the batch and
ends the run.

Ledger

Documents that exhaust their attempts go to the run's Ledger rather
than failing the run. Every source document the stream reads is
either confirmed by the destination or held in the ledger, unless
the run aborts. Hand the ledger to a sink.Sink when the run ends,
whether or not it succeeded.

Delivery is at-least-once: a write the server applied but reported
as throttled may be retried, so the destination should tolerate
duplicates.
*/
package docshift
