package server

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

	"tokendash/pkg/models"
	"tokendash/pkg/watcher"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recipient = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

type fakeController struct {
	snapshot    models.Snapshot
	transferErr error
	mintErr     error
	gotAmount   string
	sub         watcher.Subscriber
}

func newFakeController() *fakeController {
	return &fakeController{
		snapshot: models.Snapshot{
			Account:          "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
			Connected:        true,
			Token:            models.TokenMetadata{Name: "Test Token", Symbol: "TST", Decimals: 18},
			MetadataResolved: true,
			BalanceDisplay:   "10",
			History: []models.TransactionRecord{
				{ID: "0x01", Amount: "10", Direction: models.Inbound},
			},
		},
		sub: make(watcher.Subscriber, 10),
	}
}

func (f *fakeController) Snapshot() models.Snapshot { return f.snapshot }

func (f *fakeController) History() []models.TransactionRecord { return f.snapshot.History }

func (f *fakeController) TransferTo(_ context.Context, _, amount string) (common.Hash, error) {
	f.gotAmount = amount
	if f.transferErr != nil {
		return common.Hash{}, f.transferErr
	}
	return common.HexToHash("0xabc"), nil
}

func (f *fakeController) Mint(context.Context) (common.Hash, error) {
	if f.mintErr != nil {
		return common.Hash{}, f.mintErr
	}
	return common.HexToHash("0xdef"), nil
}

func (f *fakeController) Subscribe() watcher.Subscriber { return f.sub }

func (f *fakeController) Unsubscribe(watcher.Subscriber) {}

func TestHandleStatus(t *testing.T) {
	s := NewServer(newFakeController())

	req, _ := http.NewRequest("GET", "/api/status", nil)
	rr := httptest.NewRecorder()

	s.mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp models.Snapshot
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.True(t, resp.Connected)
	assert.Equal(t, "TST", resp.Token.Symbol)
	assert.Len(t, resp.History, 1)
}

func TestHandleHistory(t *testing.T) {
	s := NewServer(newFakeController())

	req, _ := http.NewRequest("GET", "/api/history", nil)
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var records []models.TransactionRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
	assert.Equal(t, "0x01", records[0].ID)
}

func TestHandleTransfer(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"accepted", `{"recipient":"` + recipient + `","amount":"1.5"}`, nil, http.StatusAccepted},
		{"malformed body", `{`, nil, http.StatusBadRequest},
		{"missing recipient", `{"amount":"1"}`, nil, http.StatusBadRequest},
		{"bad address", `{"recipient":"0x12","amount":"1"}`, nil, http.StatusBadRequest},
		{"bad amount", `{"recipient":"` + recipient + `","amount":"lots"}`, nil, http.StatusBadRequest},
		{"too precise", `{"recipient":"` + recipient + `","amount":"1"}`, errors.Join(watcher.ErrValidation, errors.New("too precise")), http.StatusBadRequest},
		{"metadata pending", `{"recipient":"` + recipient + `","amount":"1"}`, watcher.ErrMetadataPending, http.StatusConflict},
		{"rejected", `{"recipient":"` + recipient + `","amount":"1"}`, &watcher.ChainRejectionError{Message: "execution reverted"}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeController()
			c.transferErr = tt.err
			s := NewServer(c)

			req, _ := http.NewRequest("POST", "/api/transfer", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			s.mux.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusAccepted {
				var resp writeResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, common.HexToHash("0xabc").Hex(), resp.TxHash)
				assert.Equal(t, "1.5", c.gotAmount)
			}
		})
	}
}

func TestHandleMint(t *testing.T) {
	c := newFakeController()
	s := NewServer(c)

	req, _ := http.NewRequest("POST", "/api/mint", nil)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusAccepted, rr.Code)

	c.mintErr = watcher.ErrNotConnected
	rr = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/mint", nil)
	req.Header.Set("Content-Type", "application/json")
	s.mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), watcher.ErrNotConnected.Error())
}

func TestWritesRejectSimpleCrossOriginRequests(t *testing.T) {
	body := `{"recipient":"` + recipient + `","amount":"1"}`
	tests := []struct {
		name        string
		path        string
		body        string
		contentType string
		origin      string
		wantStatus  int
	}{
		{"text/plain transfer", "/api/transfer", body, "text/plain", "", http.StatusUnsupportedMediaType},
		{"form transfer", "/api/transfer", body, "application/x-www-form-urlencoded", "", http.StatusUnsupportedMediaType},
		{"bodyless mint", "/api/mint", "", "", "", http.StatusUnsupportedMediaType},
		{"foreign origin transfer", "/api/transfer", body, "application/json", "https://evil.example", http.StatusForbidden},
		{"foreign origin mint", "/api/mint", "", "text/plain", "https://evil.example", http.StatusForbidden},
		{"null origin", "/api/mint", "", "application/json", "null", http.StatusForbidden},
		{"loopback origin", "/api/transfer", body, "application/json; charset=utf-8", "http://localhost:3000", http.StatusAccepted},
		{"loopback ip origin", "/api/mint", "", "application/json", "http://127.0.0.1:8080", http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeController()
			s := NewServer(c)

			req, _ := http.NewRequest("POST", tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			s.mux.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus != http.StatusAccepted {
				assert.Empty(t, c.gotAmount)
			}
		})
	}
}

func TestReadsRejectForeignOrigin(t *testing.T) {
	s := NewServer(newFakeController())

	req, _ := http.NewRequest("GET", "/api/status", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.NotContains(t, rr.Body.String(), "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
}

func TestHandleWS_RejectsForeignOrigin(t *testing.T) {
	s := NewServer(newFakeController())
	server := httptest.NewServer(s.mux)
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"https://evil.example"}}

	ws, resp, err := websocket.DefaultDialer.Dial(u, header)
	if ws != nil {
		_ = ws.Close()
	}
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", server.URL)
	ws, _, err = websocket.DefaultDialer.Dial(u, header)
	require.NoError(t, err)
	_ = ws.Close()
}

func TestHandleWS(t *testing.T) {
	c := newFakeController()
	s := NewServer(c)
	server := httptest.NewServer(s.mux)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.listenToWatcher(ctx)

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	// Read initial state
	var msg map[string]interface{}
	err = ws.ReadJSON(&msg)
	assert.NoError(t, err)
	assert.Equal(t, "initial", msg["type"])

	c.sub <- watcher.Event{Type: watcher.EventBalanceUpdated, Data: "12"}

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev watcher.Event
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, watcher.EventBalanceUpdated, ev.Type)
	assert.Equal(t, "12", ev.Data)
}
