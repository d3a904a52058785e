// Package output shapes tool results before they are returned.
//
// Secret values pass through Redact unless Disclose allows them, which
// requires both an explicit request and read-only mode being off:
//
//	view := output.ViewSecretData(secret.Type, secret.Data, keys,
//	    output.Disclose(showValues, engine.ReadOnly()))
//
// Lists are projected with SummarizeList so full object bodies are never
// listed, and single objects are trimmed with Slim and MaskSecret.
package output
