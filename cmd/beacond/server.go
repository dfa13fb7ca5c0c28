// Copyright (c) 2025 Ludare Interactive. All Rights Reserved.
// This is licensed software from Ludare Interactive, for limitations
// and restrictions contact your company contract manager.

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/ludare/partybeacon/pkg/beacon"
	"github.com/ludare/partybeacon/pkg/beacon/host"
	"github.com/ludare/partybeacon/pkg/config"
	"github.com/ludare/partybeacon/pkg/directory"
	"github.com/ludare/partybeacon/pkg/metrics"
	"github.com/ludare/partybeacon/pkg/reservation"
	"github.com/ludare/partybeacon/pkg/reservation/ledger"
	"github.com/ludare/partybeacon/pkg/utils"
)

type server struct {
	cfg *config.Config
	dir directory.SessionDirectory
	met metrics.BeaconMetrics

	mu    sync.Mutex
	hosts map[string]*hostedSession
}

type hostedSession struct {
	host     *host.Host
	registry *host.MemberRegistry
	settings directory.SessionSettings
}

func newServer(cfg *config.Config, dir directory.SessionDirectory, met metrics.BeaconMetrics) *server {
	return &server{
		cfg:   cfg,
		dir:   dir,
		met:   met,
		hosts: make(map[string]*hostedSession),
	}
}

type createSessionRequest struct {
	SessionID         string               `json:"session_id"`
	PlaylistID        string               `json:"playlist_id"`
	OwnerID           reservation.PlayerID `json:"owner_id"`
	NumTeams          int                  `json:"num_teams"`
	MaxPlayersPerTeam int                  `json:"max_players_per_team"`
	MaxReservations   int                  `json:"max_reservations"`
	Private           bool                 `json:"private"`
	// Empty advertises the session as an idle server waiting to be claimed
	// and configured by its first reservation.
	Empty bool `json:"empty"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

func (s *server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.NumTeams <= 0 || req.MaxPlayersPerTeam <= 0 || req.MaxReservations <= 0 {
		http.Error(w, "session shape must be positive", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = utils.GenerateSessionID()
	}

	opts := []ledger.Option{}
	if s.cfg.Ranked {
		opts = append(opts, ledger.WithRanked())
	}
	if req.Empty {
		opts = append(opts, ledger.WithRequiredConfiguration())
	}
	led := ledger.New(req.NumTeams, req.MaxPlayersPerTeam, req.MaxReservations, opts...)
	if !req.Empty {
		led.Configure(reservation.EmptyServerReservation{
			PlaylistID:  req.PlaylistID,
			MakePrivate: req.Private,
		})
	}

	registry := host.NewMemberRegistry(req.OwnerID)
	h := host.New(host.Config{
		SessionID:     req.SessionID,
		SweepInterval: s.cfg.SweepInterval(),
		Timeouts: reservation.Timeouts{
			Session:       s.cfg.SessionTimeout(),
			TravelSession: s.cfg.TravelSessionTimeout(),
		},
		ProceedTimeout: s.cfg.ProceedTimeout(),
	}, led, registry, host.WithMetrics(s.met))

	settings := directory.SessionSettings{
		SessionID:  req.SessionID,
		PlaylistID: req.PlaylistID,
		MaxPlayers: req.MaxReservations,
		Private:    req.Private,
		Empty:      req.Empty,
		BeaconAddr: s.cfg.BeaconListenAddr,
	}

	s.mu.Lock()
	if _, exists := s.hosts[req.SessionID]; exists {
		s.mu.Unlock()
		h.Close()
		http.Error(w, "session already exists", http.StatusConflict)
		return
	}
	s.hosts[req.SessionID] = &hostedSession{host: h, registry: registry, settings: settings}
	s.mu.Unlock()

	if err := s.dir.CreateSession(r.Context(), settings); err != nil {
		logrus.WithError(err).WithField("sessionID", req.SessionID).Error("directory advertise failed")
		s.removeHost(req.SessionID)
		http.Error(w, "directory advertise failed", http.StatusBadGateway)
		return
	}

	logrus.WithFields(logrus.Fields{
		"sessionID":  req.SessionID,
		"playlistID": req.PlaylistID,
		"empty":      req.Empty,
	}).Info("session created")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createSessionResponse{SessionID: req.SessionID})
}

func (s *server) handleDestroySession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !s.removeHost(sessionID) {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	if err := s.dir.DestroySession(r.Context(), sessionID); err != nil {
		logrus.WithError(err).WithField("sessionID", sessionID).Warn("directory removal failed")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	hs := s.lookup(chi.URLParam(r, "sessionID"))
	if hs == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(hs.host.Stats())
}

type grantProceedRequest struct {
	LeaderID reservation.PlayerID `json:"leader_id"`
}

// handleGrantProceed opens the post-reservation travel gate for one party.
// The game server calls this once it is ready to receive the party.
func (s *server) handleGrantProceed(w http.ResponseWriter, r *http.Request) {
	hs := s.lookup(chi.URLParam(r, "sessionID"))
	if hs == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	var req grantProceedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LeaderID == "" {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	hs.host.GrantProceed(req.LeaderID)
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleBeacon(w http.ResponseWriter, r *http.Request) {
	hs := s.lookup(chi.URLParam(r, "sessionID"))
	if hs == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	conn, err := beacon.AcceptWebsocket(w, r)
	if err != nil {
		logrus.WithError(err).Info("websocket accept failed")
		return
	}
	hs.host.AttachConn(conn)
}

func (s *server) lookup(sessionID string) *hostedSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hosts[sessionID]
}

// removeHost pulls the session out of the table and stops its host.
func (s *server) removeHost(sessionID string) bool {
	s.mu.Lock()
	hs := s.hosts[sessionID]
	delete(s.hosts, sessionID)
	s.mu.Unlock()
	if hs == nil {
		return false
	}
	hs.host.Close()
	return true
}

// Close stops every hosted session and withdraws its directory advert.
func (s *server) Close(ctx context.Context) {
	s.mu.Lock()
	hosts := s.hosts
	s.hosts = make(map[string]*hostedSession)
	s.mu.Unlock()

	for sessionID, hs := range hosts {
		hs.host.Close()
		if err := s.dir.DestroySession(ctx, sessionID); err != nil {
			logrus.WithError(err).WithField("sessionID", sessionID).Warn("directory removal failed")
		}
	}
}
