package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestReadDocListsLedgerRoutes(t *testing.T) {
	raw, err := swag.ReadDoc()
	require.NoError(t, err)

	var doc struct {
		BasePath    string                            `json:"basePath"`
		Paths       map[string]map[string]interface{} `json:"paths"`
		Definitions map[string]interface{}            `json:"definitions"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	assert.Equal(t, "/api/v1", doc.BasePath)
	assert.Contains(t, doc.Paths["/loans"], "post")
	assert.Contains(t, doc.Paths["/me/loans/{loanId}/repay"], "post")
	assert.Contains(t, doc.Paths["/me/loans/{loanId}/claim"], "post")
	assert.Contains(t, doc.Paths["/admin/revenue-address"], "get")
	assert.Contains(t, doc.Paths["/admin/revenue-address"], "put")
	assert.Contains(t, doc.Paths["/ledger/events/stream"], "get")
	assert.Contains(t, doc.Definitions, "handlers.AddLoanRequest")
	assert.Contains(t, doc.Definitions, "response.Response")
}
