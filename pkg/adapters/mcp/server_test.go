package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/internal/testutils"
	"github.com/aretw0/stepwise/pkg/adapters/memory"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/session"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	eng, err := stepwise.New(stepwise.WithTransport(testutils.Echo()))
	require.NoError(t, err)

	mgr := session.NewManager(eng, memory.NewStore(), session.WithBroadcaster(memory.NewBroadcaster(nil)))
	return NewServer(mgr)
}

func TestServer_Reason(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.handleReason(context.Background(), mcp.CallToolRequest{}, ReasonArgs{Query: "why?"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ChainID)
	assert.Equal(t, string(domain.StatusTerminatedFinal), resp.Status)
	require.Len(t, resp.Transcript, 2)
	assert.Equal(t, "Step 1: echo", resp.Transcript[0].Title)
	assert.Equal(t, domain.FinalAnswerTitle, resp.Transcript[1].Title)
	require.NotNil(t, resp.TotalSeconds)

	got, err := s.handleGetChain(context.Background(), mcp.CallToolRequest{}, ChainArgs{ChainID: resp.ChainID})
	require.NoError(t, err)
	assert.Equal(t, resp.Transcript, got.Transcript)
}

func TestServer_ReasonRejectsEmpty(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleReason(context.Background(), mcp.CallToolRequest{}, ReasonArgs{Query: ""})
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestServer_GetUnknownChain(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleGetChain(context.Background(), mcp.CallToolRequest{}, ChainArgs{ChainID: "nope"})
	assert.ErrorIs(t, err, domain.ErrChainNotFound)
}

func TestServer_ChainsResource(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleReason(ctx, mcp.CallToolRequest{}, ReasonArgs{Query: "one"})
	require.NoError(t, err)

	contents, err := s.readChains(ctx, mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, ChainsURI, text.URI)

	var chains []ChainResponse
	require.NoError(t, json.Unmarshal([]byte(text.Text), &chains))
	require.Len(t, chains, 1)
	assert.Equal(t, "one", chains[0].Transcript[0].Content)
}

func TestServer_Registration(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	resp := s.MCPServer().HandleMessage(ctx, json.RawMessage(msg))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"reason"`)
	assert.Contains(t, string(raw), `"get_chain"`)
}
