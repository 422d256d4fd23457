// Package ids generates identifiers for documents and log rows.
package ids

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique, time-sortable KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// Snowflake hands out int64 snowflake IDs from a single node.
type Snowflake struct {
	once sync.Once
	node *snowflake.Node
	err  error
	id   int64
}

// NewSnowflake returns a generator for the given node ID (0-1023).
func NewSnowflake(nodeID int64) *Snowflake {
	return &Snowflake{id: nodeID}
}

// Next returns the next ID. If the node cannot be initialized it falls back
// to node 1 so IDs are still produced.
func (s *Snowflake) Next() int64 {
	s.once.Do(func() {
		s.node, s.err = snowflake.NewNode(s.id)
		if s.err != nil {
			s.node, s.err = snowflake.NewNode(1)
		}
	})
	return s.node.Generate().Int64()
}
