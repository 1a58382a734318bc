package eventhub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultIsNilUntilSet(t *testing.T) {
	SetDefault(nil)
	assert.Nil(t, Default())
}

func TestSetDefaultInstallsHub(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()
	defer SetDefault(nil)

	SetDefault(hub)
	assert.Same(t, hub, Default())
}
