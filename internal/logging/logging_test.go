package logging

import (
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrDefault(t *testing.T) {
	assert.Equal(t, Discard, OrDefault(nil))

	l := Apex(nil)
	assert.Equal(t, l, OrDefault(l))
}

func TestApexWithFields(t *testing.T) {
	h := memory.New()
	log.SetHandler(h)
	log.SetLevel(log.DebugLevel)

	l := Apex(log.Fields{"host": "www.eviscape.com"})
	l.Infof("Starting new HTTP connection (%d): %s", 1, "www.eviscape.com")
	l.Warn("pool is full")

	require.Len(t, h.Entries, 2)
	assert.Equal(t, log.InfoLevel, h.Entries[0].Level)
	assert.Equal(t, "Starting new HTTP connection (1): www.eviscape.com", h.Entries[0].Message)
	assert.Equal(t, "www.eviscape.com", h.Entries[0].Fields.Get("host"))
	assert.Equal(t, log.WarnLevel, h.Entries[1].Level)
}

func TestSetLevel(t *testing.T) {
	h := memory.New()
	log.SetHandler(h)

	SetLevel("warn")
	log.Info("dropped")
	log.Warn("kept")
	require.Len(t, h.Entries, 1)
	assert.Equal(t, "kept", h.Entries[0].Message)

	SetLevel("nonsense")
	log.Info("kept too")
	assert.Len(t, h.Entries, 2)
}
