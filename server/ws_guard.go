package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jrsteele09/go-studio-gateway/gate"
	"github.com/jrsteele09/go-studio-gateway/guard"
	"github.com/jrsteele09/go-studio-gateway/sessions"
	"github.com/rs/zerolog"
)

const (
	guardHelloWait  = 10 * time.Second
	guardWriteWait  = 5 * time.Second
	guardReadLimit  = 8 << 10
	defaultAppRoute = RouteApp
)

// guardMessage is sent by the browser. The first message opens the guard;
// later ones report a new token after login, logout or refresh, or a new
// route after client-side navigation. Absent fields are left unchanged.
type guardMessage struct {
	Token *string `json:"token,omitempty"`
	Route *string `json:"route,omitempty"`
}

// guardFrame is sent to the browser each time the decision changes.
type guardFrame struct {
	State   gate.Kind `json:"state"`
	Path    string    `json:"path,omitempty"`
	Replace bool      `json:"replace,omitempty"`
}

// socketView drives the browser's router over the guard socket. It is only
// written from the goroutine running Guard.Mount.
type socketView struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
	log    *zerolog.Logger
}

func (v *socketView) Loading() { v.send(guardFrame{State: gate.Pending}) }
func (v *socketView) Render()  { v.send(guardFrame{State: gate.Allow}) }
func (v *socketView) Replace(path string) {
	v.send(guardFrame{State: gate.Redirect, Path: path, Replace: true})
}

func (v *socketView) send(frame guardFrame) {
	_ = v.conn.SetWriteDeadline(time.Now().Add(guardWriteWait))
	if err := v.conn.WriteJSON(frame); err != nil {
		v.log.Debug().Err(err).Msg("guard socket write failed")
		v.cancel()
	}
}

// GuardSocketHandler runs a route guard for the browser over a WebSocket. The
// guard stays mounted for the life of the connection and closes with it.
func (s *Server) GuardSocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zerolog.Ctx(r.Context())
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Debug().Err(err).Msg("guard socket upgrade failed")
			return
		}
		defer conn.Close()

		s.metrics.GuardOpened()
		defer s.metrics.GuardClosed()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn.SetReadLimit(guardReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(guardHelloWait))
		var hello guardMessage
		if err := conn.ReadJSON(&hello); err != nil {
			logger.Debug().Err(err).Msg("guard socket closed before hello")
			return
		}
		_ = conn.SetReadDeadline(time.Time{})

		token := requestToken(r)
		if hello.Token != nil {
			token = *hello.Token
		}
		route := defaultAppRoute
		if hello.Route != nil {
			route = *hello.Route
		}

		view := &socketView{conn: conn, cancel: cancel, log: logger}
		g := guard.New(view, s.optionsForRoute(route), guard.WithObserver(s.observeDecision))
		states := make(chan guard.State)
		stopLoad := s.loadSession(ctx, token, states)

		go func() {
			defer cancel()
			for {
				var msg guardMessage
				if err := conn.ReadJSON(&msg); err != nil {
					return
				}
				if msg.Route != nil {
					if err := g.SetOptions(ctx, s.optionsForRoute(*msg.Route)); err != nil {
						return
					}
				}
				if msg.Token != nil {
					stopLoad()
					stopLoad = s.loadSession(ctx, *msg.Token, states)
				}
			}
		}()

		g.Mount(ctx, states)
	}
}

// loadSession feeds the session and role for token into states until the
// returned cancel func is called.
func (s *Server) loadSession(ctx context.Context, token string, states chan<- guard.State) context.CancelFunc {
	loadCtx, cancel := context.WithCancel(ctx)
	source := sessions.NewTokenSource(token, s.sessionVerifier())

	go func() {
		for state := range guard.Load(loadCtx, source, s.roleResolver()) {
			if loadCtx.Err() != nil {
				return
			}
			select {
			case states <- state:
			case <-loadCtx.Done():
				return
			}
		}
	}()

	return cancel
}
