package handlers_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/ethview/app/services/ethview/handlers"
	"github.com/ardanlabs/ethview/business/core/session"
	"github.com/ardanlabs/ethview/business/sys/metrics"
	"github.com/ardanlabs/ethview/business/web/browser"
	"github.com/ardanlabs/ethview/foundation/events"
	"github.com/ardanlabs/ethview/foundation/provider"
	"github.com/ardanlabs/ethview/foundation/provider/providertest"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const acct0 = "0x940a4589E77e5e23002410773f6dE65C5a4E2a66"

type service struct {
	srv     *httptest.Server
	session *session.Reconciler
	evts    *events.Events
}

func newService(t *testing.T, prov provider.Provider) *service {
	log := zaptest.NewLogger(t).Sugar()
	ev := func(v string, args ...any) {
		log.Infof(v, args...)
	}

	m := metrics.New(prometheus.NewRegistry())
	evts := events.New()

	b := browser.New(browser.Config{
		Evts:          evts,
		PromptTimeout: time.Second,
		LibVersion:    "test",
		EvHandler:     ev,
	})

	s, err := session.New(session.Config{
		Provider:     prov,
		UI:           b,
		Transfer:     session.Transfer{From: acct0, To: acct0, Amount: 1},
		Metrics:      m,
		EvHandler:    ev,
		StateHandler: b.State,
	})
	if err != nil {
		t.Fatalf("Should be able to construct a session: %v", err)
	}

	mux := handlers.APIMux(handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      log,
		Session:  s,
		Browser:  b,
		Evts:     evts,
		Metrics:  m,
	})

	svc := service{
		srv:     httptest.NewServer(mux),
		session: s,
		evts:    evts,
	}

	t.Cleanup(func() {
		evts.Shutdown()
		svc.srv.Close()
		s.Shutdown()
	})

	return &svc
}

func (svc *service) post(t *testing.T, path string, body string) *http.Response {
	resp, err := http.Post(svc.srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("Should be able to post to %s: %v", path, err)
	}
	resp.Body.Close()

	return resp
}

func (svc *service) view(t *testing.T) browser.View {
	resp, err := http.Get(svc.srv.URL + "/v1/session")
	if err != nil {
		t.Fatalf("Should be able to query the session: %v", err)
	}
	defer resp.Body.Close()

	var v browser.View
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("Should be able to decode the session: %v", err)
	}

	return v
}

// =============================================================================

func TestAPI(t *testing.T) {
	prov := providertest.New()
	prov.Respond("eth_requestAccounts", []string{acct0})
	prov.Respond("eth_chainId", "0x539")
	prov.Respond("eth_gasPrice", hexutil.EncodeBig(big.NewInt(21000000000)))
	prov.Respond("eth_getBalance", "0x1bc16d674ec80000")

	svc := newService(t, prov)

	t.Log("Given the need to drive the session over http.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen serving the page.", testID)
		{
			resp, err := http.Get(svc.srv.URL + "/")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to get the page: %v", failed, testID, err)
			}
			resp.Body.Close()

			if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
				t.Fatalf("\t%s\tTest %d:\tShould serve html, got %d %s.", failed, testID, resp.StatusCode, resp.Header.Get("Content-Type"))
			}
			t.Logf("\t%s\tTest %d:\tShould serve html.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen acting before connect.", testID)
		{
			if resp := svc.post(t, "/v1/accounts/refresh", ""); resp.StatusCode != http.StatusConflict {
				t.Fatalf("\t%s\tTest %d:\tShould refuse to refresh, got %d.", failed, testID, resp.StatusCode)
			}
			t.Logf("\t%s\tTest %d:\tShould refuse to refresh.", success, testID)

			if v := svc.view(t); v.Connected || len(v.Accounts) != 0 || v.GasPrice != "0" {
				t.Fatalf("\t%s\tTest %d:\tShould start with an empty session, got %+v.", failed, testID, v)
			}
			t.Logf("\t%s\tTest %d:\tShould start with an empty session.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen connecting.", testID)
		{
			ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(svc.srv.URL, "http")+"/v1/events", nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open the event stream: %v", failed, testID, err)
			}
			defer ws.Close()

			ws.SetReadDeadline(time.Now().Add(5 * time.Second))

			var f browser.Frame
			if err := ws.ReadJSON(&f); err != nil || f.Type != browser.FrameState {
				t.Fatalf("\t%s\tTest %d:\tShould receive the current state first, got %+v: %v", failed, testID, f, err)
			}
			t.Logf("\t%s\tTest %d:\tShould receive the current state first.", success, testID)

			if resp := svc.post(t, "/v1/connect", ""); resp.StatusCode != http.StatusAccepted {
				t.Fatalf("\t%s\tTest %d:\tShould accept the connect, got %d.", failed, testID, resp.StatusCode)
			}
			t.Logf("\t%s\tTest %d:\tShould accept the connect.", success, testID)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := svc.session.Settle(ctx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould settle: %v", failed, testID, err)
			}

			v := svc.view(t)
			if len(v.Accounts) != 1 || v.Accounts[0] != acct0 || v.GasPrice != "21000000000" || v.Ether != "2" {
				t.Fatalf("\t%s\tTest %d:\tShould show the connected session, got %+v.", failed, testID, v)
			}
			t.Logf("\t%s\tTest %d:\tShould show the connected session.", success, testID)

			for {
				var f browser.Frame
				if err := ws.ReadJSON(&f); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould stream the balance: %v", failed, testID, err)
				}
				if f.Type == browser.FrameState && f.Session.Ether == "2" {
					break
				}
			}
			t.Logf("\t%s\tTest %d:\tShould stream the balance.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen answering prompts.", testID)
		{
			if resp := svc.post(t, "/v1/prompts/42", `{"confirmed":true}`); resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest %d:\tShould reject a malformed id, got %d.", failed, testID, resp.StatusCode)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a malformed id.", success, testID)

			const id = "/v1/prompts/6f1b2c3d-0000-4000-8000-000000000000"

			if resp := svc.post(t, id, `{}`); resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest %d:\tShould require an answer, got %d.", failed, testID, resp.StatusCode)
			}
			t.Logf("\t%s\tTest %d:\tShould require an answer.", success, testID)

			if resp := svc.post(t, id, `{"confirmed":false}`); resp.StatusCode != http.StatusNotFound {
				t.Fatalf("\t%s\tTest %d:\tShould report an unknown prompt, got %d.", failed, testID, resp.StatusCode)
			}
			t.Logf("\t%s\tTest %d:\tShould report an unknown prompt.", success, testID)
		}
	}
}

func TestNoProvider(t *testing.T) {
	svc := newService(t, nil)

	t.Log("Given a service started without a wallet provider.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen connecting.", testID)
		{
			if resp := svc.post(t, "/v1/connect", ""); resp.StatusCode != http.StatusServiceUnavailable {
				t.Fatalf("\t%s\tTest %d:\tShould report the missing provider, got %d.", failed, testID, resp.StatusCode)
			}
			t.Logf("\t%s\tTest %d:\tShould report the missing provider.", success, testID)

			if v := svc.view(t); v.Connected {
				t.Fatalf("\t%s\tTest %d:\tShould not connect, got %+v.", failed, testID, v)
			}
			t.Logf("\t%s\tTest %d:\tShould not connect.", success, testID)
		}
	}
}

func TestPreflight(t *testing.T) {
	svc := newService(t, providertest.New())

	t.Log("Given a page served from another origin.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the browser sends a preflight request.", testID)
		{
			req, err := http.NewRequest(http.MethodOptions, svc.srv.URL+"/v1/connect", nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to build the request: %v", failed, testID, err)
			}
			req.Header.Set("Origin", "http://localhost:3000")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to send the request: %v", failed, testID, err)
			}
			resp.Body.Close()

			if resp.StatusCode != http.StatusNoContent {
				t.Fatalf("\t%s\tTest %d:\tShould answer with %d, got %d.", failed, testID, http.StatusNoContent, resp.StatusCode)
			}
			t.Logf("\t%s\tTest %d:\tShould answer with %d.", success, testID, http.StatusNoContent)

			if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
				t.Fatalf("\t%s\tTest %d:\tShould allow every origin, got %q.", failed, testID, got)
			}
			if got := resp.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
				t.Fatalf("\t%s\tTest %d:\tShould allow POST, got %q.", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould carry the CORS headers.", success, testID)
		}
	}
}
