// Package deliverable defines the eight-part optimization package the
// generator produces and the review surface consumes: rewritten body HTML,
// schema markup, meta fields, internal link suggestions, image prompts, a
// query fan-out map, the citation list, and a change summary.
package deliverable
