package hooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"microcredit/internal/core/services"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookHook_PostsNotice(t *testing.T) {
	var got services.SettlementNotice
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	notice := services.SettlementNotice{
		Payer:        common.HexToAddress("0x0000000000000000000000000000000000000001"),
		Token:        common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		UserID:       3,
		LoanID:       1,
		InterestPaid: "10",
	}
	require.NoError(t, NewWebhookHook(srv.URL).LoanSettled(context.Background(), notice))
	assert.Equal(t, notice, got)
}

func TestWebhookHook_Non2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rewards offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewWebhookHook(srv.URL).LoanSettled(context.Background(), services.SettlementNotice{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestNew_EmptyURLIsNoop(t *testing.T) {
	hook := New("")
	assert.IsType(t, Noop{}, hook)
	assert.NoError(t, hook.LoanSettled(context.Background(), services.SettlementNotice{}))
}
