// Package brief assembles the generation context for one queue item: a pure,
// deterministic merge of the item snapshot, the research bundle, the loaded
// knowledge documents, and the current live content. The directive on the
// item is authoritative for strategy; engine metrics only contribute advisory
// annotations.
package brief
