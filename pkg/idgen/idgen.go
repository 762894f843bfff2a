// Package idgen hands out snowflake ids for notifications and queued jobs.
package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator wraps a snowflake node. Every replica needs its own node id.
type Generator struct {
	node *snowflake.Node
}

// New creates a generator for the given node id (0..1023).
func New(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node}, nil
}

// Next returns a new unique id.
func (g *Generator) Next() int64 {
	return g.node.Generate().Int64()
}
