// Package notifications pushes production events (review ready, rejections,
// render completion, errors) to an ntfy topic when one is configured.
package notifications
