package ticketapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-console/internal/config"
	"github.com/spec-kit/support-console/internal/domain"
	apperrors "github.com/spec-kit/support-console/pkg/util"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(config.TicketAPIConfig{BaseURL: server.URL, TimeoutSeconds: 5})
	return client, server
}

func TestListDecodesSummaries(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/tickets", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]domain.Ticket{
			{ID: "t1", Subject: "No hot water", Status: domain.TicketStatusOpen, MessageCount: 2},
		})
	}))
	defer server.Close()

	tickets, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "t1", tickets[0].ID)
	assert.Equal(t, 2, tickets[0].MessageCount)
}

func TestDetailIncludesMessages(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tickets/t1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(domain.Ticket{
			ID:     "t1",
			Status: domain.TicketStatusOpen,
			Messages: []domain.Message{
				{ID: "m1", TicketID: "t1", Body: "hi", CreatedAt: created},
			},
		})
	}))
	defer server.Close()

	ticket, err := client.Detail(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, ticket.Messages, 1)
	assert.Equal(t, "m1", ticket.Messages[0].ID)
	assert.True(t, ticket.Messages[0].CreatedAt.Equal(created))
}

func TestSendMessagePostsBodyAndDecodesReply(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/tickets/t1/messages", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "on it", req["message"])
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.Message{ID: "srv-1", TicketID: "t1", Body: "on it", IsFromStaff: true})
	}))
	defer server.Close()

	msg, err := client.SendMessage(context.Background(), "t1", "on it")
	require.NoError(t, err)
	assert.Equal(t, "srv-1", msg.ID)
	assert.True(t, msg.IsFromStaff)
}

func TestChangeStatusPatchesCollection(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/tickets", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "t1", req["id"])
		assert.Equal(t, "RESOLVED", req["status"])
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	require.NoError(t, client.ChangeStatus(context.Background(), "t1", domain.TicketStatusResolved))
}

func TestDeleteTicket(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/tickets/t1", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	require.NoError(t, client.Delete(context.Background(), "t1"))
}

func TestUpstreamFailureBecomesTypedError(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := client.List(context.Background())
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "UPSTREAM_ERROR", domainErr.Code)
	assert.Equal(t, http.StatusBadGateway, domainErr.HTTPStatus)
}

func TestTransportFailureBecomesTypedError(t *testing.T) {
	client := NewClient(config.TicketAPIConfig{BaseURL: "http://127.0.0.1:1", TimeoutSeconds: 1})

	err := client.ChangeStatus(context.Background(), "t1", domain.TicketStatusClosed)
	require.Error(t, err)
	assert.Equal(t, "UPSTREAM_ERROR", apperrors.ToDomainError(err).Code)
}
