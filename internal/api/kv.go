// Package api binds small key/value and publish endpoints to redis
// identifiers so a running app can be exercised over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/http_server"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/logging"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/components/redis"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/consts"
	"github.com/grand-thief-cash/chaos/app/infra/go/redisapp/core"
)

const maxValueBytes = 1 << 20

// Register adds the routes to every http_server started afterwards.
func Register() {
	http_server.RegisterRoutes(func(r chi.Router, _ *core.Container) error {
		Mount(r)
		return nil
	})
}

// Mount installs the routes on r. Handlers resolve clients from the request
// context, so the registry middleware must run before them.
func Mount(r chi.Router) {
	r.Route("/kv/{id}/{key}", func(r chi.Router) {
		r.Get("/", getValue)
		r.Put("/", putValue)
		r.Delete("/", deleteValue)
	})
	r.Post("/publish/{id}/{channel}", publish)
	r.Get("/redis/clients", listClients)
}

func clientFor(w http.ResponseWriter, r *http.Request) (redis.Client, bool) {
	id := redis.ID(chi.URLParam(r, "id"))
	c, err := redis.FromRequest(r, id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, redis.ErrUnknownID) {
			status = http.StatusNotFound
		}
		writeError(w, r, status, err)
		return nil, false
	}
	return c, true
}

func getValue(w http.ResponseWriter, r *http.Request) {
	c, ok := clientFor(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	v, err := c.Send(r.Context(), "GET", key)
	if err != nil {
		writeError(w, r, http.StatusBadGateway, err)
		return
	}
	if v == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "key not found"})
		return
	}
	s, err := redis.Convert[string](v)
	if err != nil {
		writeError(w, r, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": s})
}

func putValue(w http.ResponseWriter, r *http.Request) {
	c, ok := clientFor(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxValueBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	key := chi.URLParam(r, "key")
	if _, err := c.Send(r.Context(), "SET", key, string(body)); err != nil {
		writeError(w, r, http.StatusBadGateway, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func deleteValue(w http.ResponseWriter, r *http.Request) {
	c, ok := clientFor(w, r)
	if !ok {
		return
	}
	n, err := redis.SendAs[int64](r.Context(), c, "DEL", chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func publish(w http.ResponseWriter, r *http.Request) {
	c, ok := clientFor(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxValueBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	n, err := c.Publish(r.Context(), chi.URLParam(r, "channel"), string(body))
	if err != nil {
		writeError(w, r, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"receivers": n})
}

type clientInfo struct {
	ID        string   `json:"id"`
	Addresses []string `json:"addresses,omitempty"`
	Database  int      `json:"db"`
	TLS       bool     `json:"tls"`
	Mode      string   `json:"mode,omitempty"`
	Stub      bool     `json:"stub,omitempty"`
	Custom    bool     `json:"custom,omitempty"`
}

func listClients(w http.ResponseWriter, r *http.Request) {
	reg, ok := redis.RegistryFromContext(r.Context())
	if !ok {
		if reg = redis.Global(); reg == nil {
			writeError(w, r, http.StatusServiceUnavailable, redis.ErrNoRegistry)
			return
		}
	}
	out := make([]clientInfo, 0)
	for _, id := range reg.IDs() {
		info := clientInfo{ID: string(id)}
		cfg, err := reg.Configuration(id)
		switch {
		case errors.Is(err, redis.ErrStubConfiguration):
			info.Stub = true
		case errors.Is(err, redis.ErrNoConfiguration):
			info.Custom = true
		case err != nil:
			writeError(w, r, http.StatusInternalServerError, err)
			return
		default:
			info.Addresses = cfg.AddrStrings()
			info.Database = cfg.DatabaseIndex()
			info.TLS = cfg.TLS != nil
			info.Mode = cfg.Mode
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	logging.Warn(r.Context(), "redis api request failed",
		zap.String(consts.KEY_RedisID, chi.URLParam(r, "id")),
		zap.Int("status", status),
		zap.Error(err),
	)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
