package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lol.mleku.dev/chk"
	"quadrelay.dev/app/config"
	"quadrelay.dev/pkg/acl"
	"quadrelay.dev/pkg/database"
	"quadrelay.dev/pkg/encoders/event"
	"quadrelay.dev/pkg/encoders/filter"
	"quadrelay.dev/pkg/encoders/hex"
	"quadrelay.dev/pkg/encoders/tag"
	"quadrelay.dev/pkg/ingest"
	"quadrelay.dev/pkg/metrics"
	"quadrelay.dev/pkg/negentropy"
	"quadrelay.dev/pkg/protocol/auth"
	"quadrelay.dev/pkg/ratelimit"
	"quadrelay.dev/pkg/reqmonitor"
	"quadrelay.dev/pkg/reqworker"
	"quadrelay.dev/pkg/writer"
)

// Server holds the shared state every connection's Listener reaches
// through, and handles the relay's non-websocket HTTP surface: NIP-11 and
// the admin export/import endpoints.
type Server struct {
	mux    *http.ServeMux
	Config *config.C
	Ctx    context.Context
	Admins [][]byte
	*database.D

	Ingest     *ingest.Pool
	ReqWorker  *reqworker.Pool
	ReqMonitor *reqmonitor.Pool
	Negentropy *negentropy.Pool
	Writer     *writer.Writer
	Metrics    *metrics.Registry
	RateLimit  *ratelimit.Limiter
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Header.Get("Upgrade") == "websocket" {
		s.HandleWebsocket(w, r)
		return
	}

	if r.Header.Get("Accept") == "application/nostr+json" {
		s.HandleRelayInfo(w, r)
		return
	}

	if s.mux == nil {
		http.Error(w, "Upgrade required", http.StatusUpgradeRequired)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) ServiceURL(req *http.Request) (st string) {
	host := req.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = req.Host
	}
	proto := req.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		if host == "localhost" {
			proto = "ws"
		} else if strings.Contains(host, ":") {
			proto = "ws"
		} else if _, err := strconv.Atoi(
			strings.ReplaceAll(host, ".", ""),
		); chk.E(err) {
			proto = "ws"
		} else {
			proto = "wss"
		}
	} else if proto == "https" {
		proto = "wss"
	} else if proto == "http" {
		proto = "ws"
	}
	return proto + "://" + host
}

// Routes registers the relay's admin HTTP surface: bulk export/import and
// a convenience endpoint for a single user's own events. There is no
// bundled web client; every endpoint here is authenticated by a signed
// event carried in the Authorization header, the same NIP-42 event shape
// websocket AUTH uses, rather than a browser session cookie.
func (s *Server) Routes() {
	if s.mux == nil {
		s.mux = http.NewServeMux()
	}
	s.mux.HandleFunc("/api/export", s.handleExport)
	s.mux.HandleFunc("/api/export/mine", s.handleExportMine)
	s.mux.HandleFunc("/api/events/mine", s.handleEventsMine)
	s.mux.HandleFunc("/api/import", s.handleImport)
}

// authenticate validates the bearer event carried in r's Authorization
// header ("Authorization: Nostr <base64 JSON event>") and returns its
// signer's pubkey. The event is the same kind used for websocket NIP-42
// AUTH, validated without a prior challenge via auth.ValidateRequest.
func (s *Server) authenticate(r *http.Request) (pubkey []byte, err error) {
	const prefix = "Nostr "
	hdr := r.Header.Get("Authorization")
	if !strings.HasPrefix(hdr, prefix) {
		return nil, errors.New("missing Nostr authorization header")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(hdr, prefix))
	if err != nil {
		return nil, fmt.Errorf("invalid authorization encoding: %w", err)
	}
	var ev event.E
	if err = json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("invalid authorization event: %w", err)
	}
	ok, err := auth.ValidateRequest(&ev, s.ServiceURL(r))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("authorization event failed validation")
	}
	return ev.Pubkey, nil
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (pubkey []byte, ok bool) {
	pubkey, err := s.authenticate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return nil, false
	}
	if acl.Registry.GetAccessLevel(pubkey, r.RemoteAddr) != "admin" {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return nil, false
	}
	return pubkey, true
}

// handleExport streams all events as NDJSON, or only those authored by the
// pubkeys named in repeated ?pubkey= query parameters. Admins only.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	var pks [][]byte
	for _, pkHex := range r.URL.Query()["pubkey"] {
		if pkHex == "" {
			continue
		}
		if pk, err := hex.Dec(pkHex); !chk.E(err) {
			pks = append(pks, pk)
		}
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	filename := "events-" + time.Now().UTC().Format("20060102-150405Z") + ".jsonl"
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	s.D.Export(s.Ctx, w, pks...)
}

// handleExportMine streams only the authenticated caller's own events.
func (s *Server) handleExportMine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	pubkey, err := s.authenticate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	filename := "my-events-" + time.Now().UTC().Format("20060102-150405Z") + ".jsonl"
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	s.D.Export(s.Ctx, w, pubkey)
}

// handleImport accepts a multipart file or a raw NDJSON body and imports
// it into the store. Admins only.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); chk.E(err) {
			http.Error(w, "Failed to parse form", http.StatusBadRequest)
			return
		}
		file, _, err := r.FormFile("file")
		if chk.E(err) {
			http.Error(w, "Missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		s.D.Import(file)
	} else {
		if r.Body == nil {
			http.Error(w, "Empty request body", http.StatusBadRequest)
			return
		}
		s.D.Import(r.Body)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"success": true, "message": "Import started"}`))
}

// handleEventsMine returns the authenticated caller's events, paginated.
func (s *Server) handleEventsMine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	pubkey, err := s.authenticate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	query := r.URL.Query()
	limit := 50
	if l := query.Get("limit"); l != "" {
		if parsed, perr := strconv.Atoi(l); perr == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	offset := 0
	if o := query.Get("offset"); o != "" {
		if parsed, perr := strconv.Atoi(o); perr == nil && parsed >= 0 {
			offset = parsed
		}
	}

	f := &filter.F{Authors: tag.NewFromBytesSlice(pubkey)}
	events, err := s.D.QueryEvents(s.Ctx, f)
	if chk.E(err) {
		http.Error(w, "Failed to query events", http.StatusInternalServerError)
		return
	}

	total := len(events)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	page := events[start:end]

	type eventResponse struct {
		ID        string `json:"id"`
		Kind      int    `json:"kind"`
		CreatedAt int64  `json:"created_at"`
		Content   string `json:"content"`
		RawJSON   string `json:"raw_json"`
	}
	response := struct {
		Events []eventResponse `json:"events"`
		Total  int             `json:"total"`
		Offset int             `json:"offset"`
		Limit  int             `json:"limit"`
	}{
		Events: make([]eventResponse, len(page)),
		Total:  total,
		Offset: offset,
		Limit:  limit,
	}
	for i, ev := range page {
		response.Events[i] = eventResponse{
			ID:        hex.Enc(ev.ID),
			Kind:      int(ev.Kind),
			CreatedAt: int64(ev.CreatedAt),
			Content:   string(ev.Content),
			RawJSON:   string(ev.Serialize()),
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}
