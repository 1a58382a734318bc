package eventhub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListenerTableMatchesExactTypeAndSource(t *testing.T) {
	var table listenerTable
	table.add("com.example.type", "com.example.source", func(*Event) {})

	match := NewEvent("com.example.type", "com.example.source", nil)
	assert.Len(t, table.matching(match), 1)

	noMatch := NewEvent("com.example.other", "com.example.source", nil)
	assert.Empty(t, table.matching(noMatch))
}

func TestListenerTableMatchIsCaseInsensitive(t *testing.T) {
	var table listenerTable
	table.add("Com.Example.Type", "Com.Example.Source", func(*Event) {})

	e := NewEvent("com.example.type", "com.example.source", nil)
	assert.Len(t, table.matching(e), 1)
}

func TestListenerTableWildcardMatchesAnything(t *testing.T) {
	var table listenerTable
	table.add("*", "*", func(*Event) {})

	assert.Len(t, table.matching(NewEvent("anything", "anywhere", nil)), 1)
}

func TestListenerTableEmptyFilterNormalizesToWildcard(t *testing.T) {
	var table listenerTable
	table.add("", "", func(*Event) {})

	assert.Len(t, table.matching(NewEvent("anything", "anywhere", nil)), 1)
}

func TestListenerTableMultipleEntriesAllFireInOrder(t *testing.T) {
	var table listenerTable
	var order []int
	table.add("*", "*", func(*Event) { order = append(order, 1) })
	table.add("*", "*", func(*Event) { order = append(order, 2) })

	matches := table.matching(NewEvent("T", "S", nil))
	assert.Len(t, matches, 2)
	for _, m := range matches {
		m.handler(nil)
	}
	assert.Equal(t, []int{1, 2}, order)
}
