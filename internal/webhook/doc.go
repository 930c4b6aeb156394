// Package webhook receives order-fulfillment webhooks, verifies them with
// HMAC-SHA256 and hands verified events to the tracking reconciler.
//
// # Security Model
//
//   - The digest is computed over the exact request bytes, before any JSON
//     decoding, and compared in constant time (crypto/subtle)
//   - Required headers are checked before any hashing happens
//   - Body size limits are enforced before hashing
//   - Rejections carry no digest details; request bodies are never logged
//
// # Request Flow
//
//  1. HTTP POST arrives at the configured path
//  2. Body read with a size limit (413 if too large)
//  3. X-Shopify-Hmac-Sha256, X-Shopify-Topic and X-Shopify-Shop-Domain must all
//     be present, and the body non-empty (401 otherwise)
//  4. base64(HMAC-SHA256(secret, body)) compared to X-Shopify-Hmac-Sha256 (401 on mismatch)
//  5. Body decoded as a JSON object (400 if it is not)
//  6. Event reconciled into the tracking store
//  7. 200 with an empty body, whatever reconciliation did
//
// Step 7 is deliberate: once an event is verified, downstream failures are
// logged and acknowledged so the sender does not redeliver into an outage.
// The mapping from outcome to status lives in StatusFor.
package webhook
