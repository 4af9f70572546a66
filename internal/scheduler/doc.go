// Package scheduler decides, once per tick, which recipients are due for their
// daily passage and delivers to them.
//
// There is one process-wide loop. Each tick lists the schedule store, evaluates
// every record against the tick instant in the record's own timezone, and for
// due records fetches the next curated passage and sends it. Only a confirmed
// send advances the record (last delivered date and rotation cursor); every
// failure leaves the stored record untouched so the next tick can retry.
//
// The registration entry points (Register, Unregister, Lookup,
// ListAvailableVersions, Quote) are the only way the chat front end touches
// schedules.
package scheduler
