package relay

import (
	"hash/fnv"
	"sort"
)

// hashRing maps metric names onto a fixed set of destination hosts by
// consistent hashing, so the same metric name always lands on the same
// downstream host as long as the host list is unchanged. Resolves the
// open question in spec.md §9 (hash vs broadcast for multiple statsd-relay
// hosts): see SPEC_FULL.md §9 and DESIGN.md for why this stays a few lines
// of stdlib hash/fnv rather than a dependency.
type hashRing struct {
	hosts []string
}

func newHashRing(hosts []string) *hashRing {
	sorted := make([]string, len(hosts))
	copy(sorted, hosts)
	sort.Strings(sorted)
	return &hashRing{hosts: sorted}
}

// Pick returns the host responsible for name.
func (r *hashRing) Pick(name string) string {
	if len(r.hosts) == 0 {
		return ""
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	idx := int(h.Sum32()) % len(r.hosts)
	if idx < 0 {
		idx += len(r.hosts)
	}
	return r.hosts[idx]
}
