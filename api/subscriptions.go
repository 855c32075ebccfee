// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	noncePollInterval = time.Second
	pingPeriod        = 30 * time.Second
	writeTimeout      = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (s *Server) mountSubscriptions(router *mux.Router) {
	router.HandleFunc("/subscriptions/nonce", s.handleSubscribeNonce).Methods(http.MethodGet)
}

type nonceMessage struct {
	Nonce uint64 `json:"nonce"`
}

// handleSubscribeNonce streams the change nonce over a websocket. The
// current value is pushed immediately, then every change as it is
// observed.
func (s *Server) handleSubscribeNonce(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied with an error
		logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(nonce uint64) error {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(&nonceMessage{Nonce: nonce})
	}

	last, err := s.registry.ChangeNonce()
	if err != nil {
		logger.Warn("failed to read change nonce", "error", err)
		return
	}
	if err := send(last); err != nil {
		return
	}

	poll := time.NewTicker(noncePollInterval)
	defer poll.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-poll.C:
			nonce, err := s.registry.ChangeNonce()
			if err != nil {
				logger.Warn("failed to read change nonce", "error", err)
				return
			}
			if nonce == last {
				continue
			}
			last = nonce
			if err := send(nonce); err != nil {
				return
			}
		}
	}
}
