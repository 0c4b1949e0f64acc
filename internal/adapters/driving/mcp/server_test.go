package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("nil search service returns error", func(t *testing.T) {
		server, err := NewServer(&Ports{})
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingSearchService)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}})
		require.NoError(t, err)
		assert.NotNil(t, server)
		assert.NotNil(t, server.Handler())
	})
}

func TestPorts_Validate(t *testing.T) {
	t.Run("nil search service returns error", func(t *testing.T) {
		assert.ErrorIs(t, (&Ports{}).Validate(), ErrMissingSearchService)
	})

	t.Run("search only is valid", func(t *testing.T) {
		assert.NoError(t, (&Ports{Search: &mockSearchService{}}).Validate())
	})

	t.Run("all ports is valid", func(t *testing.T) {
		ports := &Ports{
			Search:  &mockSearchService{},
			RAG:     &mockRAGService{},
			History: &mockHistoryService{},
		}
		assert.NoError(t, ports.Validate())
	})
}
