package itest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rideshare-marketplace/rides-api/internal/adapters/httpapi"
	memclock "github.com/rideshare-marketplace/rides-api/internal/adapters/memory/clock"
	memidempotency "github.com/rideshare-marketplace/rides-api/internal/adapters/memory/idempotency"
	memriderepo "github.com/rideshare-marketplace/rides-api/internal/adapters/memory/riderepo"
	memuserrepo "github.com/rideshare-marketplace/rides-api/internal/adapters/memory/userrepo"
	mongoriderepo "github.com/rideshare-marketplace/rides-api/internal/adapters/mongo/riderepo"
	mongo_testutil "github.com/rideshare-marketplace/rides-api/internal/adapters/mongo/testutil"
	mongouserrepo "github.com/rideshare-marketplace/rides-api/internal/adapters/mongo/userrepo"
	pgidempotency "github.com/rideshare-marketplace/rides-api/internal/adapters/postgres/idempotency"
	pgriderepo "github.com/rideshare-marketplace/rides-api/internal/adapters/postgres/riderepo"
	postgres_testutil "github.com/rideshare-marketplace/rides-api/internal/adapters/postgres/testutil"
	pguserrepo "github.com/rideshare-marketplace/rides-api/internal/adapters/postgres/userrepo"
	"github.com/rideshare-marketplace/rides-api/internal/app/bookings"
	"github.com/rideshare-marketplace/rides-api/internal/app/rides"
	"github.com/rideshare-marketplace/rides-api/internal/app/users"
	"github.com/rideshare-marketplace/rides-api/internal/platform/logging"
	idempotencyport "github.com/rideshare-marketplace/rides-api/internal/ports/out/idempotency"
	riderepoport "github.com/rideshare-marketplace/rides-api/internal/ports/out/riderepo"
	userrepoport "github.com/rideshare-marketplace/rides-api/internal/ports/out/userrepo"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
	backendMongo    backend = "mongo"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "mongo":
		return []backend{backendMongo}
	case "all":
		return []backend{backendMemory, backendPostgres, backendMongo}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|mongo|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	var (
		userRepo  userrepoport.Repository
		rideRepo  riderepoport.Repository
		idemStore idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		userRepo = pguserrepo.NewRepo(pool)
		rideRepo = pgriderepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool, time.Hour)
	case backendMongo:
		db := mongo_testutil.OpenDatabase(t)
		userRepo = mongouserrepo.NewRepo(db)
		rideRepo = mongoriderepo.NewRepo(db)
		idemStore = memidempotency.NewStore()
	case backendMemory:
		userRepo = memuserrepo.NewRepo()
		rideRepo = memriderepo.NewRepo()
		idemStore = memidempotency.NewStore()
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	log := logging.Discard()
	userSvc := users.NewService(userRepo, rideRepo, clk)
	rideSvc := rides.NewService(rideRepo, userRepo, clk)
	bookingSvc := bookings.NewService(userRepo, rideRepo, clk, bookings.DefaultPolicy())
	api := httpapi.NewServer(userSvc, rideSvc, bookingSvc, idemStore, log)

	handler := httpapi.NewRouter(api, httpapi.RouterOptions{Maintenance: true, Logger: log})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, headers map[string]string, body any) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type summary struct {
	Id   string `json:"_id"`
	From string `json:"from"`
	To   string `json:"to"`
}

type userBody struct {
	User struct {
		Id           string    `json:"_id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		BookedRides  []summary `json:"bookedRides"`
		OfferedRides []summary `json:"offeredRides"`
	} `json:"user"`
}

type rideBody struct {
	Id         string   `json:"_id"`
	UserId     string   `json:"userId"`
	Seats      int      `json:"seats"`
	Capacity   int      `json:"capacity"`
	Passengers []string `json:"passengers"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireStatus(t *testing.T, status int, body []byte, want int) {
	t.Helper()
	if status != want {
		t.Fatalf("status=%d want=%d body=%s", status, want, string(body))
	}
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	requireStatus(t, status, body, wantStatus)
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func (s *testServer) register(t *testing.T, name, email string) string {
	t.Helper()
	status, body, _ := s.doJSON(t, http.MethodPost, "/api/register", nil, map[string]any{
		"name":     name,
		"email":    email,
		"password": "password",
	})
	requireStatus(t, status, body, http.StatusCreated)
	u := mustUnmarshal[userBody](t, body)
	if u.User.Id == "" {
		t.Fatalf("expected _id to be set; body=%s", string(body))
	}
	return u.User.Id
}

func (s *testServer) createRide(t *testing.T, owner string, seats int) string {
	t.Helper()
	status, body, _ := s.doJSON(t, http.MethodPost, "/api/rides", nil, map[string]any{
		"userId":    owner,
		"from":      "Rothenburg",
		"to":        "Würzburg",
		"date":      "2024-03-01",
		"departure": "08:00",
		"price":     12.5,
		"seats":     seats,
	})
	requireStatus(t, status, body, http.StatusCreated)
	got := mustUnmarshal[struct {
		Ride rideBody `json:"ride"`
	}](t, body)
	return got.Ride.Id
}
