package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	memclock "github.com/rideshare-marketplace/rides-api/internal/adapters/memory/clock"
	memidempotency "github.com/rideshare-marketplace/rides-api/internal/adapters/memory/idempotency"
	memriderepo "github.com/rideshare-marketplace/rides-api/internal/adapters/memory/riderepo"
	memuserrepo "github.com/rideshare-marketplace/rides-api/internal/adapters/memory/userrepo"
	"github.com/rideshare-marketplace/rides-api/internal/app/bookings"
	"github.com/rideshare-marketplace/rides-api/internal/app/rides"
	"github.com/rideshare-marketplace/rides-api/internal/app/users"
	"github.com/rideshare-marketplace/rides-api/internal/domain"
	"github.com/rideshare-marketplace/rides-api/internal/platform/logging"
	"github.com/rideshare-marketplace/rides-api/internal/ports/out/userrepo"
)

// brokenUsers fails every lookup with a storage error.
type brokenUsers struct {
	userrepo.Repository
}

func (brokenUsers) GetByID(context.Context, domain.UserID) (domain.User, error) {
	return domain.User{}, errors.New("connection reset by peer: secret-host:5432")
}

type testAPI struct {
	h http.Handler
}

func newTestAPI(t *testing.T, opts RouterOptions, wrapUsers func(userrepo.Repository) userrepo.Repository) *testAPI {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	var userRepo userrepo.Repository = memuserrepo.NewRepo()
	if wrapUsers != nil {
		userRepo = wrapUsers(userRepo)
	}
	rideRepo := memriderepo.NewRepo()

	log := logging.Discard()
	api := NewServer(
		users.NewService(userRepo, rideRepo, clk),
		rides.NewService(rideRepo, userRepo, clk),
		bookings.NewService(userRepo, rideRepo, clk, bookings.DefaultPolicy()),
		memidempotency.NewStore(),
		log,
	)
	opts.Logger = log
	return &testAPI{h: NewRouter(api, opts)}
}

func (a *testAPI) do(t *testing.T, method, path string, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) register(t *testing.T, name, email string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/register", `{"name":"`+name+`","email":"`+email+`","password":"pw"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", rec.Code, rec.Body.String())
	}
	var got UserResponse
	decode(t, rec, &got)
	return got.User.Id
}

func (a *testAPI) createRide(t *testing.T, owner string, seats int) string {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"userId": owner, "from": "Nürnberg", "to": "Frankfurt",
		"date": "2024-03-02", "departure": "09:30", "price": 25.0, "seats": seats,
	})
	rec := a.do(t, http.MethodPost, "/api/rides", string(body), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create ride status=%d body=%s", rec.Code, rec.Body.String())
	}
	var got RideResponse
	decode(t, rec, &got)
	return got.Ride.Id
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal: %v body=%s", err, rec.Body.String())
	}
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status=%d want=%d body=%s", rec.Code, status, rec.Body.String())
	}
	var er ErrorResponse
	decode(t, rec, &er)
	if er.Error.Code != code {
		t.Fatalf("code=%q want=%q body=%s", er.Error.Code, code, rec.Body.String())
	}
	return er
}

func TestRegister_ReturnsUserWithEmptyReferences(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, RouterOptions{}, nil)
	rec := api.do(t, http.MethodPost, "/api/register", `{"name":"  Alice   Smith ","email":"alice@example.com","password":"pw"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var got UserResponse
	decode(t, rec, &got)
	if got.Message != "User registered successfully" {
		t.Fatalf("message=%q", got.Message)
	}
	if got.User.Name != "Alice Smith" || got.User.TrustScore != "medium" || got.User.Theme != domain.DefaultTheme {
		t.Fatalf("unexpected user: %+v", got.User)
	}
	if got.User.BookedRides == nil || got.User.OfferedRides == nil {
		t.Fatalf("reference lists must encode as [] not null: %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), `"password"`) {
		t.Fatalf("password leaked in response: %s", rec.Body.String())
	}
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, RouterOptions{}, nil)
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"name":`},
		{"empty body", ``},
		{"missing name", `{"email":"a@example.com","password":"pw"}`},
		{"bad email", `{"name":"A","email":"not-an-email","password":"pw"}`},
		{"missing password", `{"name":"A","email":"a@example.com"}`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/register", tc.body, nil)
			requireError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
		})
	}
}

func TestUpdateUser_NullAndOmittedFields(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, RouterOptions{}, nil)
	id := api.register(t, "Alice", "alice@example.com")

	rec := api.do(t, http.MethodPut, "/api/users/"+id, `{"bio":"Likes music","theme":"dark","notificationPreferences":true}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodPut, "/api/users/"+id, `{"bio":null,"theme":null}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var got UserResponse
	decode(t, rec, &got)
	if got.User.Bio != "" || got.User.Theme != domain.DefaultTheme {
		t.Fatalf("null must reset fields: %+v", got.User)
	}
	if !got.User.NotificationPreferences {
		t.Fatalf("omitted field must be left untouched: %+v", got.User)
	}

	requireError(t, api.do(t, http.MethodPut, "/api/users/"+id, `{"name":null}`, nil), http.StatusBadRequest, "VALIDATION_ERROR")
	er := requireError(t, api.do(t, http.MethodPut, "/api/users/"+id, `{"email":"nope"}`, nil), http.StatusBadRequest, "VALIDATION_ERROR")
	details, err := er.Error.Details.Get()
	if err != nil || details["email"] == nil {
		t.Fatalf("expected email detail, got %+v", er.Error)
	}
}

func TestUpdateUser_EmailTaken(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, RouterOptions{}, nil)
	api.register(t, "Alice", "alice@example.com")
	bob := api.register(t, "Bob", "bob@example.com")

	rec := api.do(t, http.MethodPut, "/api/users/"+bob, `{"email":"ALICE@example.com"}`, nil)
	requireError(t, rec, http.StatusBadRequest, "EMAIL_ALREADY_IN_USE")
}

func TestBookRide_ErrorOrder(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, RouterOptions{}, nil)
	alice := api.register(t, "Alice", "alice@example.com")
	bob := api.register(t, "Bob", "bob@example.com")
	carol := api.register(t, "Carol", "carol@example.com")
	ride := api.createRide(t, alice, 1)
	missing := "11111111-1111-1111-1111-111111111111"

	requireError(t, api.do(t, http.MethodPost, "/api/users/"+bob+"/book-ride", `{"rideId":"bogus"}`, nil), http.StatusBadRequest, "INVALID_REFERENCE")
	requireError(t, api.do(t, http.MethodPost, "/api/users/"+missing+"/book-ride", `{"rideId":"`+missing+`"}`, nil), http.StatusNotFound, "USER_NOT_FOUND")
	requireError(t, api.do(t, http.MethodPost, "/api/users/"+bob+"/book-ride", `{"rideId":"`+missing+`"}`, nil), http.StatusNotFound, "RIDE_NOT_FOUND")

	rec := api.do(t, http.MethodPost, "/api/users/"+bob+"/book-ride", `{"rideId":"`+ride+`"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var got UserResponse
	decode(t, rec, &got)
	if got.Message != "Ride booked successfully" || len(got.User.BookedRides) != 1 || got.User.BookedRides[0].Id != ride {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}

	// Seat availability is checked before duplicate and ownership.
	requireError(t, api.do(t, http.MethodPost, "/api/users/"+carol+"/book-ride", `{"rideId":"`+ride+`"}`, nil), http.StatusBadRequest, "NO_SEATS_AVAILABLE")
	requireError(t, api.do(t, http.MethodPost, "/api/users/"+bob+"/book-ride", `{"rideId":"`+ride+`"}`, nil), http.StatusBadRequest, "NO_SEATS_AVAILABLE")
	requireError(t, api.do(t, http.MethodPost, "/api/users/"+alice+"/book-ride", `{"rideId":"`+ride+`"}`, nil), http.StatusBadRequest, "NO_SEATS_AVAILABLE")
}

func TestBookRide_IdempotentReplayAndReuse(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, RouterOptions{}, nil)
	alice := api.register(t, "Alice", "alice@example.com")
	bob := api.register(t, "Bob", "bob@example.com")
	r1 := api.createRide(t, alice, 2)
	r2 := api.createRide(t, alice, 2)
	hdr := map[string]string{"Idempotency-Key": "k-1"}

	first := api.do(t, http.MethodPost, "/api/users/"+bob+"/book-ride", `{"rideId":"`+r1+`"}`, hdr)
	if first.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", first.Code, first.Body.String())
	}
	again := api.do(t, http.MethodPost, "/api/users/"+bob+"/book-ride", `{ "rideId" : "`+r1+`" }`, hdr)
	if again.Code != http.StatusOK || again.Body.String() != first.Body.String() {
		t.Fatalf("replay mismatch: status=%d body=%s", again.Code, again.Body.String())
	}
	if again.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("missing Idempotent-Replayed header")
	}

	rec := api.do(t, http.MethodGet, "/api/rides/"+r1, "", nil)
	var ride Ride
	decode(t, rec, &ride)
	if ride.Seats != 1 {
		t.Fatalf("seats=%d want=1", ride.Seats)
	}

	requireError(t, api.do(t, http.MethodPost, "/api/users/"+bob+"/book-ride", `{"rideId":"`+r2+`"}`, hdr), http.StatusConflict, "IDEMPOTENCY_KEY_REUSE")

	// Keys are scoped to the acting user.
	carol := api.register(t, "Carol", "carol@example.com")
	rec = api.do(t, http.MethodPost, "/api/users/"+carol+"/book-ride", `{"rideId":"`+r2+`"}`, hdr)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestBookRide_IdempotencyKeyMatchesCanonicalUserID(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, RouterOptions{}, nil)
	alice := api.register(t, "Alice", "alice@example.com")
	bob := api.register(t, "Bob", "bob@example.com")
	ride := api.createRide(t, alice, 2)
	hdr := map[string]string{"Idempotency-Key": "k-case"}
	body := `{"rideId":"` + ride + `"}`

	first := api.do(t, http.MethodPost, "/api/users/"+bob+"/book-ride", body, hdr)
	if first.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", first.Code, first.Body.String())
	}
	again := api.do(t, http.MethodPost, "/api/users/"+strings.ToUpper(bob)+"/book-ride", body, hdr)
	if again.Code != http.StatusOK || again.Body.String() != first.Body.String() {
		t.Fatalf("upper-case id retry: status=%d body=%s", again.Code, again.Body.String())
	}
	if again.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("missing Idempotent-Replayed header")
	}
}

func TestBookRide_MalformedUserIDWithIdempotencyKey(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, RouterOptions{}, nil)
	alice := api.register(t, "Alice", "alice@example.com")
	ride := api.createRide(t, alice, 2)
	hdr := map[string]string{"Idempotency-Key": "k-bad"}

	requireError(t, api.do(t, http.MethodPost, "/api/users/not-an-id/book-ride", `{"rideId":"`+ride+`"}`, hdr), http.StatusBadRequest, "INVALID_REFERENCE")
}

func TestBookRide_FailuresAreNotReplayed(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, RouterOptions{}, nil)
	alice := api.register(t, "Alice", "alice@example.com")
	bob := api.register(t, "Bob", "bob@example.com")
	carol := api.register(t, "Carol", "carol@example.com")
	ride := api.createRide(t, alice, 1)
	hdr := map[string]string{"Idempotency-Key": "k-2"}
	body := `{"rideId":"` + ride + `"}`

	if rec := api.do(t, http.MethodPost, "/api/users/"+carol+"/book-ride", body, nil); rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	requireError(t, api.do(t, http.MethodPost, "/api/users/"+bob+"/book-ride", body, hdr), http.StatusBadRequest, "NO_SEATS_AVAILABLE")

	if rec := api.do(t, http.MethodDelete, "/api/users/"+carol+"/cancel-ride/"+ride, "", nil); rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec := api.do(t, http.MethodPost, "/api/users/"+bob+"/book-ride", body, hdr)
	if rec.Code != http.StatusOK {
		t.Fatalf("retry after failure: status=%d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Idempotent-Replayed") != "" {
		t.Fatalf("first success must not be a replay")
	}
}

func TestOfferRide_LinksExistingRide(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, RouterOptions{}, nil)
	alice := api.register(t, "Alice", "alice@example.com")
	bob := api.register(t, "Bob", "bob@example.com")
	ride := api.createRide(t, alice, 2)

	rec := api.do(t, http.MethodPost, "/api/users/"+bob+"/offer-ride", `{"rideId":"`+ride+`"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var got UserResponse
	decode(t, rec, &got)
	if got.Message != "Ride offered successfully" || len(got.User.OfferedRides) != 1 {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
}

func TestListRides_InvalidOwnerFilter(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, RouterOptions{}, nil)
	requireError(t, api.do(t, http.MethodGet, "/api/rides?userId=xyz", "", nil), http.StatusBadRequest, "INVALID_REFERENCE")

	rec := api.do(t, http.MethodGet, "/api/rides", "", nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestMaintenanceRoutes_DisabledAreNotMounted(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, RouterOptions{Maintenance: false}, nil)
	requireError(t, api.do(t, http.MethodDelete, "/api/rides/all", "", nil), http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
	requireError(t, api.do(t, http.MethodDelete, "/api/users/clear-booked-rides", "", nil), http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")

	enabled := newTestAPI(t, RouterOptions{Maintenance: true}, nil)
	rec := enabled.do(t, http.MethodDelete, "/api/rides/all", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestUnknownRoute_JSONEnvelope(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, RouterOptions{}, nil)
	er := requireError(t, api.do(t, http.MethodGet, "/api/nope", "", nil), http.StatusNotFound, "NOT_FOUND")
	if !er.Error.RequestId.IsSpecified() {
		t.Fatalf("expected requestId in error envelope")
	}
}

func TestInternalError_DoesNotLeakCause(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, RouterOptions{}, func(r userrepo.Repository) userrepo.Repository {
		return brokenUsers{Repository: r}
	})
	rec := api.do(t, http.MethodGet, "/api/users/11111111-1111-1111-1111-111111111111", "", nil)
	requireError(t, rec, http.StatusInternalServerError, "INTERNAL")
	if strings.Contains(rec.Body.String(), "secret-host") {
		t.Fatalf("internal error leaked: %s", rec.Body.String())
	}
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, RouterOptions{CORSOrigins: []string{"https://app.example.com"}}, nil)
	rec := api.do(t, http.MethodOptions, "/api/rides", "", map[string]string{
		"Origin":                        "https://app.example.com",
		"Access-Control-Request-Method": "POST",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow-origin=%q", got)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key") {
		t.Fatalf("allow-headers=%q", rec.Header().Get("Access-Control-Allow-Headers"))
	}

	rec = api.do(t, http.MethodGet, "/api/rides", "", map[string]string{"Origin": "https://evil.example.com"})
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unexpected allow-origin for foreign origin")
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t, RouterOptions{}, nil)
	rec := api.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz status=%d body=%q", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("expected http request counter in metrics output")
	}
}
