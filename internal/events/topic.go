// Package events fans change notifications out to every connected client so
// cached views of shared business data can be invalidated after a write.
//
// Delivery is at-most-once and best-effort: there is no persistence, replay or
// acknowledgement. A client that was disconnected must resynchronise from the
// source of truth instead of expecting missed events.
package events

import (
	"context"
	"encoding/json"
)

// Topic tags the resource category a change event refers to. The enumeration
// is versioned: adding a topic is backward compatible, renaming one is not.
type Topic string

const (
	TopicProducts   Topic = "products"
	TopicCategories Topic = "categories"
	TopicSales      Topic = "sales"
	TopicClients    Topic = "clients"
	TopicSuppliers  Topic = "suppliers"
	TopicInventory  Topic = "inventory"
	TopicFinance    Topic = "finance"
	TopicPriceLists Topic = "price_lists"
	TopicEmployees  Topic = "employees"
	TopicRoles      Topic = "roles"
)

var topics = []Topic{
	TopicProducts,
	TopicCategories,
	TopicSales,
	TopicClients,
	TopicSuppliers,
	TopicInventory,
	TopicFinance,
	TopicPriceLists,
	TopicEmployees,
	TopicRoles,
}

// Topics lists every topic known to this build.
func Topics() []Topic {
	out := make([]Topic, len(topics))
	copy(out, topics)
	return out
}

// Valid reports whether t belongs to the enumeration.
func (t Topic) Valid() bool {
	for _, known := range topics {
		if t == known {
			return true
		}
	}
	return false
}

// Event is the wire message pushed to clients.
type Event struct {
	Type      Topic           `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Publisher announces that a topic changed. Implementations never block on
// subscribers and never report delivery failures to the caller.
type Publisher interface {
	Publish(ctx context.Context, topic Topic, data any)
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Topic, any) {}
