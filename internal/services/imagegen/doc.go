// Package imagegen generates still images from composed prompts, optionally
// biased toward a reference image with an influence weight. Content-policy
// refusals surface as services.ErrRestricted and are never retried.
package imagegen
