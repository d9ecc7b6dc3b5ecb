//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	httpapi "github.com/instawin/merchprize/internal/api/http"
	appJournal "github.com/instawin/merchprize/internal/application/journal"
	appOutcome "github.com/instawin/merchprize/internal/application/outcome"
	"github.com/instawin/merchprize/internal/application/play"
	"github.com/instawin/merchprize/internal/application/token"
	"github.com/instawin/merchprize/internal/domain/gameparams"
	"github.com/instawin/merchprize/internal/domain/operator"
	"github.com/instawin/merchprize/internal/infrastructure/keystore"
	"github.com/instawin/merchprize/internal/infrastructure/ode"
	"github.com/instawin/merchprize/internal/infrastructure/postgres"
	"github.com/instawin/merchprize/internal/infrastructure/signer"
	"github.com/instawin/merchprize/internal/infrastructure/sse"
)

const journalKeyHex = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
const operatorKey = "integration-operator-key-0001"

const tripleGame = `
gameId: triple
pricePoints: [1, 5]
draw:
  - division: 4
    weight: 1
    multiplier: 3
`

type playResponse struct {
	Token   string `json:"token"`
	Stage   string `json:"stage"`
	CycleID string `json:"cycleId"`
	Settled bool   `json:"settled"`
	Ledger  struct {
		Settled int64 `json:"settled"`
		Pending int64 `json:"pending"`
		Payout  int64 `json:"payout"`
	} `json:"ledger"`
}

func TestSettlementIsJournaledInPostgres(t *testing.T) {
	server, cleanup := newTestServer(t)
	defer cleanup()

	resp := playCall(t, server.URL, map[string]interface{}{"action": "TRY", "wager": 5}, http.StatusOK)
	if resp.Stage != "Wager" || !resp.Settled {
		t.Fatalf("expected a settled cycle, got %+v", resp)
	}
	if resp.Ledger.Settled != 5 || resp.Ledger.Pending != 0 || resp.Ledger.Payout != 15 {
		t.Fatalf("unexpected ledger %+v", resp.Ledger)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/v1/settlements/"+resp.CycleID, nil)
	req.Header.Set("Authorization", "Bearer "+operatorKey)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get settlement: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	var body struct {
		Settlement   map[string]interface{}  `json:"settlement"`
		Verification appJournal.VerifyResult `json:"verification"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode settlement: %v", err)
	}
	if !body.Verification.Verified {
		t.Fatalf("expected verified settlement, got %+v", body.Verification)
	}
	if body.Settlement["payout"] != float64(15) {
		t.Fatalf("unexpected payout %v", body.Settlement["payout"])
	}
}

func TestMigrationsAreRecordedOnce(t *testing.T) {
	dsn := testDatabaseURL(t)
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("db pool: %v", err)
	}
	defer pool.Close()

	dir := filepath.Join(repoRoot(t), "internal", "migrations")
	for i := 0; i < 2; i++ {
		if err := postgres.RunMigrations(ctx, pool, dir); err != nil {
			t.Fatalf("migrations run %d: %v", i+1, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != len(entries) {
		t.Fatalf("expected %d recorded migrations, got %d", len(entries), count)
	}
}

func TestReplayedTokenIsRejected(t *testing.T) {
	server, cleanup := newTestServer(t)
	defer cleanup()

	first := playCall(t, server.URL, map[string]interface{}{"action": "TRY", "wager": 1}, http.StatusOK)
	next := map[string]interface{}{"token": first.Token, "action": "TRY", "wager": 1}
	playCall(t, server.URL, next, http.StatusOK)
	playCall(t, server.URL, next, http.StatusConflict)
}

func playCall(t *testing.T, baseURL string, body map[string]interface{}, wantStatus int) playResponse {
	t.Helper()
	raw, _ := json.Marshal(body)
	res, err := http.Post(baseURL+"/v1/games/triple/play", "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != wantStatus {
		t.Fatalf("expected %d, got %d", wantStatus, res.StatusCode)
	}
	var out playResponse
	if wantStatus == http.StatusOK {
		if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
			t.Fatalf("decode play: %v", err)
		}
	}
	return out
}

func newTestServer(t *testing.T) (*httptest.Server, func()) {
	t.Helper()
	dsn := testDatabaseURL(t)

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("db pool: %v", err)
	}

	root := repoRoot(t)
	if err := postgres.RunMigrations(ctx, pool, filepath.Join(root, "internal", "migrations")); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}
	if err := resetDatabase(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("reset db: %v", err)
	}

	logger := zerolog.Nop()
	g, err := gameparams.Parse([]byte(tripleGame))
	if err != nil {
		t.Fatalf("game params: %v", err)
	}
	games, err := gameparams.NewRegistry(g)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	keys, err := keystore.NewEphemeral()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	engine, err := ode.NewLocalEngine(games)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	opHash, err := operator.HashKey(operatorKey)
	if err != nil {
		t.Fatalf("operator hash: %v", err)
	}

	journalSvc := appJournal.NewService(postgres.NewJournalRepository(pool), logger, mustDecodeHex(t, journalKeyHex))
	sseHub := sse.NewHub(logger)
	playSvc := play.NewService(
		token.NewCodec(signer.NewHMACSigner(keys), token.WithTTL(time.Hour)),
		appOutcome.NewResolver(engine, 5*time.Second, logger),
		logger,
		play.WithRecorder(journalSvc),
		play.WithNotifier(sseHub),
		play.WithReplayGuard(postgres.NewReplayRepository(pool)),
	)
	apiServer := httpapi.NewServer(playSvc, journalSvc, games, sseHub, opHash, logger)
	server := httptest.NewServer(apiServer.Router())
	cleanup := func() {
		server.Close()
		sseHub.Stop()
		pool.Close()
	}

	return server, cleanup
}

func testDatabaseURL(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		return dsn
	}
	t.Skip("TEST_DATABASE_URL not set; skipping integration tests")
	return ""
}

func repoRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func resetDatabase(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		TRUNCATE TABLE
			settlements,
			consumed_tokens
		RESTART IDENTITY CASCADE
	`)
	return err
}

func mustDecodeHex(t *testing.T, value string) []byte {
	t.Helper()
	b, err := hex.DecodeString(value)
	if err != nil {
		t.Fatalf("invalid hex: %v", err)
	}
	return b
}
