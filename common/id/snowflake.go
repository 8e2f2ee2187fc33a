package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// Node IDs per process so the two binaries never mint colliding IDs.
const (
	NodeServer  int64 = 1
	NodeMonitor int64 = 2
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node. Call once at process start with
// the node ID of the binary; later calls are no-ops.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a time-ordered int64 ID unique across both processes.
func New() int64 {
	return node.Generate().Int64()
}
