package count

import (
	"sort"
)

// Item is one counted value with its frequency
type Item struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Table is a frequency table: items sorted by count descending, ties broken
// lexicographically by value, plus a record of which attributes were counted.
type Table struct {
	Attributes []string `json:"attributes"`
	Items      []Item   `json:"items"`
}

// Total returns the sum of all counts
func (t *Table) Total() int {
	total := 0
	for _, it := range t.Items {
		total += it.Count
	}
	return total
}

// Get returns the count for a value, 0 when absent
func (t *Table) Get(value string) int {
	for _, it := range t.Items {
		if it.Value == value {
			return it.Count
		}
	}
	return 0
}

// Counter is an exact in-memory frequency counter
type Counter map[string]int

// Add increments the count for an item
func (c Counter) Add(item string, n int) {
	c[item] += n
}

// Table finalizes the counter into a sorted frequency table
func (c Counter) Table(attributes []string) *Table {
	items := make([]Item, 0, len(c))
	for v, n := range c {
		items = append(items, Item{Value: v, Count: n})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Value < items[j].Value
	})
	return &Table{Attributes: append([]string(nil), attributes...), Items: items}
}
