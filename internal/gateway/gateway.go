// Package gateway exposes the coordination services over HTTP JSON plus a
// websocket change feed. It owns transport concerns only: authentication,
// rate limiting, request decoding, and error-to-status mapping. All domain
// rules live in the services.
package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/louisbranch/wyrmtable/internal/ai"
	campaignservice "github.com/louisbranch/wyrmtable/internal/campaign/service"
	chatservice "github.com/louisbranch/wyrmtable/internal/chat/service"
	encounterservice "github.com/louisbranch/wyrmtable/internal/encounter/service"
	"github.com/louisbranch/wyrmtable/internal/identity"
	noteservice "github.com/louisbranch/wyrmtable/internal/note/service"
	"github.com/louisbranch/wyrmtable/internal/notify"
	"github.com/louisbranch/wyrmtable/internal/ratelimit"
	rollservice "github.com/louisbranch/wyrmtable/internal/roll/service"
)

// Config wires the gateway's collaborators.
type Config struct {
	Campaigns  *campaignservice.Registry
	Encounters *encounterservice.Coordinator
	Rolls      *rollservice.Service
	Notes      *noteservice.Service
	Chat       *chatservice.Service
	// AI is optional; generation endpoints 404 when unset.
	AI       *ai.Service
	Verifier *identity.Verifier
	Hub      *notify.Hub
	// Limiter is optional; requests are not throttled when unset.
	Limiter        *ratelimit.Limiter
	Logger         zerolog.Logger
	AllowedOrigins []string
}

// Gateway is the HTTP transport for the coordination core.
type Gateway struct {
	campaigns  *campaignservice.Registry
	encounters *encounterservice.Coordinator
	rolls      *rollservice.Service
	notes      *noteservice.Service
	chat       *chatservice.Service
	ai         *ai.Service
	verifier   *identity.Verifier
	hub        *notify.Hub
	limiter    *ratelimit.Limiter
	logger     zerolog.Logger
	origins    []string
	upgrader   websocket.Upgrader
}

// New creates a gateway.
func New(cfg Config) *Gateway {
	return &Gateway{
		campaigns:  cfg.Campaigns,
		encounters: cfg.Encounters,
		rolls:      cfg.Rolls,
		notes:      cfg.Notes,
		chat:       cfg.Chat,
		ai:         cfg.AI,
		verifier:   cfg.Verifier,
		hub:        cfg.Hub,
		limiter:    cfg.Limiter,
		logger:     cfg.Logger,
		origins:    cfg.AllowedOrigins,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler builds the route table.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /v1/campaigns", g.authed(g.handleCreateCampaign))
	mux.HandleFunc("GET /v1/campaigns", g.authed(g.handleListCampaigns))
	mux.HandleFunc("GET /v1/campaigns/{campaignID}", g.authed(g.handleGetCampaign))
	mux.HandleFunc("PATCH /v1/campaigns/{campaignID}", g.authed(g.handleUpdateCampaign))
	mux.HandleFunc("DELETE /v1/campaigns/{campaignID}", g.authed(g.handleDeleteCampaign))
	mux.HandleFunc("POST /v1/campaigns/{campaignID}/archive", g.authed(g.handleArchiveCampaign))
	mux.HandleFunc("POST /v1/campaigns/{campaignID}/join-code", g.authed(g.handleRegenerateJoinCode))
	mux.HandleFunc("POST /v1/campaigns/{campaignID}/session", g.authed(g.handleAdvanceSession))
	mux.HandleFunc("POST /v1/join", g.authed(g.handleJoinByCode))
	mux.HandleFunc("POST /v1/campaigns/{campaignID}/leave", g.authed(g.handleLeaveCampaign))
	mux.HandleFunc("GET /v1/campaigns/{campaignID}/members", g.authed(g.handleListMembers))
	mux.HandleFunc("DELETE /v1/campaigns/{campaignID}/members/{uid}", g.authed(g.handleRemoveMember))
	mux.HandleFunc("PUT /v1/campaigns/{campaignID}/character", g.authed(g.handleSetCharacter))

	mux.HandleFunc("POST /v1/campaigns/{campaignID}/invites", g.authed(g.handleCreateInvite))
	mux.HandleFunc("GET /v1/invites", g.authed(g.handleListMyInvites))
	mux.HandleFunc("POST /v1/invites/{inviteID}/accept", g.authed(g.handleAcceptInvite))
	mux.HandleFunc("POST /v1/invites/{inviteID}/decline", g.authed(g.handleDeclineInvite))

	mux.HandleFunc("POST /v1/campaigns/{campaignID}/encounters", g.authed(g.handleStartEncounter))
	mux.HandleFunc("GET /v1/campaigns/{campaignID}/encounters/active", g.authed(g.handleActiveEncounter))
	mux.HandleFunc("GET /v1/campaigns/{campaignID}/encounters/{encounterID}", g.authed(g.handleGetEncounter))
	mux.HandleFunc("POST /v1/campaigns/{campaignID}/encounters/{encounterID}/turn", g.authed(g.handleNextTurn))
	mux.HandleFunc("PATCH /v1/campaigns/{campaignID}/encounters/{encounterID}/combatants/{combatantID}", g.authed(g.handleUpdateCombatant))
	mux.HandleFunc("POST /v1/campaigns/{campaignID}/encounters/{encounterID}/log", g.authed(g.handleAppendLog))
	mux.HandleFunc("POST /v1/campaigns/{campaignID}/encounters/{encounterID}/end", g.authed(g.handleEndEncounter))
	mux.HandleFunc("POST /v1/campaigns/{campaignID}/encounters/generate", g.authed(g.handleGenerateEncounter))

	mux.HandleFunc("POST /v1/campaigns/{campaignID}/templates", g.authed(g.handleSaveTemplate))
	mux.HandleFunc("GET /v1/campaigns/{campaignID}/templates", g.authed(g.handleListTemplates))
	mux.HandleFunc("DELETE /v1/campaigns/{campaignID}/templates/{templateID}", g.authed(g.handleDeleteTemplate))
	mux.HandleFunc("POST /v1/campaigns/{campaignID}/templates/{templateID}/start", g.authed(g.handleStartFromTemplate))

	mux.HandleFunc("POST /v1/campaigns/{campaignID}/rolls", g.authed(g.handleCreateRollRequest))
	mux.HandleFunc("GET /v1/campaigns/{campaignID}/rolls", g.authed(g.handleListRollRequests))
	mux.HandleFunc("POST /v1/campaigns/{campaignID}/rolls/{requestID}/responses", g.authed(g.handleSubmitRollResponse))

	mux.HandleFunc("POST /v1/campaigns/{campaignID}/notes", g.authed(g.handleCreateNote))
	mux.HandleFunc("GET /v1/campaigns/{campaignID}/notes", g.authed(g.handleListNotes))
	mux.HandleFunc("PATCH /v1/campaigns/{campaignID}/notes/{noteID}", g.authed(g.handleUpdateNote))
	mux.HandleFunc("DELETE /v1/campaigns/{campaignID}/notes/{noteID}", g.authed(g.handleDeleteNote))

	mux.HandleFunc("POST /v1/campaigns/{campaignID}/messages", g.authed(g.handleSendMessage))
	mux.HandleFunc("GET /v1/campaigns/{campaignID}/messages", g.authed(g.handleListMessages))
	mux.HandleFunc("POST /v1/campaigns/{campaignID}/whispers", g.authed(g.handleSendWhisper))
	mux.HandleFunc("GET /v1/campaigns/{campaignID}/whispers", g.authed(g.handleListWhispers))

	mux.HandleFunc("GET /ws", g.authed(g.handleWebsocket))

	handler := g.logRequests(mux)
	return cors.New(cors.Options{
		AllowedOrigins:   g.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(handler)
}

// Server wraps the handler in an http.Server with sane timeouts. The
// websocket endpoint needs an unset write timeout, so only headers and reads
// are bounded.
func (g *Gateway) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
