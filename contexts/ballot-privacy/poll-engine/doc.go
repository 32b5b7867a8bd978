// Package pollengine implements the privacy-preserving poll engine inside
// the ballot-privacy context.
//
// The module owns the poll lifecycle (create/vote/finalize plus read
// queries), the per-poll voter ledger, and the encrypted one-hot tally
// accumulation. Every vote-dependent state change goes through opaque
// ciphertext handles on the encrypted arithmetic port, so no component of
// this module can observe an individual choice or a running tally. Business
// rules live in application/domain layers; infrastructure sits behind ports
// and adapters.
package pollengine
