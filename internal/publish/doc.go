// Package publish talks to the CMS over its REST API. It does exactly two
// things: fetch the current rendered content of a post, and create drafts for
// human review. There is deliberately no way to publish from here; approved
// drafts go live through the CMS itself.
package publish
