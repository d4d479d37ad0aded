package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// NewUID returns a random UUID string used as entity primary key.
func NewUID() string {
	return uuid.NewString()
}

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// NewSecretCode returns an unguessable one-time code for links sent by
// email. 128 of its bits come from crypto/rand.
func NewSecretCode() string {
	return ksuid.New().String()
}

// NewSnowflakeID generates a snowflake ID string using a node ID from
// the environment variable SNOWFLAKE_NODE.
func NewSnowflakeID() string {
	nodeEnv := os.Getenv("SNOWFLAKE_NODE")
	if nodeEnv == "" {
		return NewSnowflakeIDWithNode(1)
	}
	nodeID, err := strconv.ParseInt(nodeEnv, 10, 64)
	if err != nil {
		return NewSnowflakeIDWithNode(1)
	}
	return NewSnowflakeIDWithNode(nodeID)
}

var (
	nodesMu sync.Mutex
	nodes   = map[int64]*snowflake.Node{}
)

// snowflakeNode reuses one node per id so the sequence counter survives
// between calls made in the same millisecond.
func snowflakeNode(nodeID int64) (*snowflake.Node, error) {
	nodesMu.Lock()
	defer nodesMu.Unlock()
	if n, ok := nodes[nodeID]; ok {
		return n, nil
	}
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	nodes[nodeID] = n
	return n, nil
}

// NewSnowflakeIDWithNode generates a snowflake ID string using the provided node ID.
// If the node cannot be initialized, it falls back to a KSUID string.
func NewSnowflakeIDWithNode(nodeID int64) string {
	node, err := snowflakeNode(nodeID)
	if err != nil {
		return NewKSUID()
	}
	return node.Generate().String()
}
