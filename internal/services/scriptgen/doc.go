// Package scriptgen talks to an OpenRouter-compatible chat completion API for
// the text stages of the pipeline: outline, writer draft, scene breakdown,
// and quality review. All operations request JSON-only responses and decode
// them leniently via DecodeModelJSON.
package scriptgen
