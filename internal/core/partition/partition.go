package partition

import "hash/fnv"

// For returns the index of the child that owns a table, given the
// configured child count. Stable and deterministic: the same table always
// routes to the same child, which keeps a table's messages on one shard
// when ingest arrives through an aggregating tier.
// Uses FNV-32a (stdlib, fast, well-distributed).
func For(table string, children int) int {
	if children <= 0 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(table))
	return int(h.Sum32()) % children
}
