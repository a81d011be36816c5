package engine

import (
	"github.com/buraksezer/consistent"
	"github.com/spaolacci/murmur3"
)

type hasher struct{}

func (h hasher) Sum64(data []byte) uint64 {
	return murmur3.Sum64(data)
}

// Partitioner pins run ids to partition workers. Every request for a
// run lands on the same worker, which is what serializes a run's
// execution without per-run locks.
type Partitioner struct {
	partitionCount int
	hring          *consistent.Consistent
}

func NewPartitioner(partitionCount int) *Partitioner {
	cfg := consistent.Config{
		PartitionCount:    partitionCount,
		ReplicationFactor: 20,
		Load:              1.25,
		Hasher:            hasher{},
	}
	return &Partitioner{
		partitionCount: partitionCount,
		hring:          consistent.New(nil, cfg),
	}
}

func (p *Partitioner) Partition(runId string) int {
	return p.hring.FindPartitionID([]byte(runId))
}
