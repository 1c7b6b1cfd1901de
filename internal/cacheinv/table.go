// Package cacheinv keeps a client's cached query results coherent with the
// server by discarding and refetching them when change events arrive.
package cacheinv

import "github.com/retailops/backoffice/internal/events"

// QueryKey names one cached query result on the client.
type QueryKey string

const (
	KeyProducts       QueryKey = "products"
	KeyCategories     QueryKey = "categories"
	KeySales          QueryKey = "sales"
	KeyClients        QueryKey = "clients"
	KeySuppliers      QueryKey = "suppliers"
	KeyInventory      QueryKey = "inventory"
	KeyFinance        QueryKey = "finance"
	KeyPriceLists     QueryKey = "price-lists"
	KeyEmployees      QueryKey = "employees"
	KeyRoles          QueryKey = "roles"
	KeyDashboardStats QueryKey = "dashboard-stats"
)

// Table maps a topic to the cached queries it makes stale.
type Table map[events.Topic][]QueryKey

// DefaultTable is the mapping used by back-office clients. Dashboard
// statistics are derived from sales, stock, products and finance, so those
// topics invalidate them too.
var DefaultTable = Table{
	events.TopicProducts:   {KeyProducts, KeyPriceLists, KeyInventory, KeyDashboardStats},
	events.TopicCategories: {KeyCategories, KeyProducts},
	events.TopicSales:      {KeySales, KeyDashboardStats},
	events.TopicClients:    {KeyClients},
	events.TopicSuppliers:  {KeySuppliers},
	events.TopicInventory:  {KeyInventory, KeyDashboardStats},
	events.TopicFinance:    {KeyFinance, KeyDashboardStats},
	events.TopicPriceLists: {KeyPriceLists},
	events.TopicEmployees:  {KeyEmployees},
	events.TopicRoles:      {KeyRoles, KeyEmployees},
}

// Keys returns the queries invalidated by topic; nil for unknown topics.
func (t Table) Keys(topic events.Topic) []QueryKey {
	keys, ok := t[topic]
	if !ok {
		return nil
	}
	out := make([]QueryKey, len(keys))
	copy(out, keys)
	return out
}
