package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rideshare-marketplace/rides-api/internal/domain"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/idempotency"
)

const bookRideRoute = "/api/users/{id}/book-ride"

// replayer stores the successful response of an idempotent request.
type replayer struct {
	idem idempotency.Store
	fp   idempotency.Fingerprint
	s    *Server
}

// beginIdempotent claims key for (actor, route). It returns done=true when a response has
// already been written: a replay of the stored response or a 409 on key reuse.
//
// Two records are kept per key: a meta record (empty BodyHash) holding the body hash of the
// first request, and a response record keyed by that hash.
func (s *Server) beginIdempotent(w http.ResponseWriter, r *http.Request, key idempotency.Key, actor domain.UserID, route, bodyHash string) (*replayer, bool) {
	ctx := r.Context()
	metaFP := idempotency.Fingerprint{
		Key:      key,
		Actor:    actor,
		Method:   r.Method,
		Route:    route,
		BodyHash: "",
	}
	meta, ok, err := s.Idem.Get(ctx, metaFP)
	if err != nil {
		s.writeAppError(w, r, err)
		return nil, true
	}
	if ok {
		if string(meta.Body) != bodyHash {
			writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
			return nil, true
		}
	} else if err := s.Idem.Put(ctx, metaFP, idempotency.Record{
		StatusCode:  0,
		ContentType: "text/plain",
		Body:        []byte(bodyHash),
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		s.Log.WarnContext(ctx, "idempotency meta write failed", "key", key, "err", err)
	}

	respFP := metaFP
	respFP.BodyHash = bodyHash
	rec, ok, err := s.Idem.Get(ctx, respFP)
	if err != nil {
		s.writeAppError(w, r, err)
		return nil, true
	}
	if ok && rec.StatusCode == http.StatusOK && strings.HasPrefix(rec.ContentType, "application/json") {
		w.Header().Set("Content-Type", rec.ContentType)
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(rec.StatusCode)
		_, _ = w.Write(rec.Body)
		return nil, true
	}
	return &replayer{idem: s.Idem, fp: respFP, s: s}, false
}

func (rp *replayer) store(ctx context.Context, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	// json.Encoder appends a newline; keep replays byte-identical.
	b = append(b, '\n')
	if err := rp.idem.Put(ctx, rp.fp, idempotency.Record{
		StatusCode:  status,
		ContentType: "application/json",
		Body:        b,
		CreatedAt:   time.Now().UTC(),
	}); err != nil {
		rp.s.Log.WarnContext(ctx, "idempotency response write failed", "key", rp.fp.Key, "err", err)
	}
}

func hashRideRef(b RideRefRequest) string {
	canon := RideRefRequest{RideId: strings.ToLower(strings.TrimSpace(b.RideId))}
	raw, _ := json.Marshal(canon)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
