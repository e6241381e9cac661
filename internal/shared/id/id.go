// Package id generates identifiers exposed outside the database.
package id

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// OrderPrefix marks external order numbers handed to payment providers.
const OrderPrefix = "DP"

var (
	nodeMu sync.Mutex
	node   *snowflake.Node
)

// InitNode sets the snowflake node number. Instances sharing a database must
// use distinct values in [0, 1023].
func InitNode(n int64) error {
	nd, err := snowflake.NewNode(n)
	if err != nil {
		return fmt.Errorf("failed to create snowflake node %d: %w", n, err)
	}
	nodeMu.Lock()
	node = nd
	nodeMu.Unlock()
	return nil
}

func getNode() *snowflake.Node {
	nodeMu.Lock()
	defer nodeMu.Unlock()
	if node == nil {
		node, _ = snowflake.NewNode(1)
	}
	return node
}

// NewExternalOrderID returns a time-ordered order number such as
// "DP1797542769461133312". It fits the 32-char out_trade_no limit.
func NewExternalOrderID() string {
	return OrderPrefix + getNode().Generate().String()
}

// NewIdempotencyKey returns a random key for callers that did not supply one.
func NewIdempotencyKey() string {
	return uuid.NewString()
}
