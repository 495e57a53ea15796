package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"stream-donate.backend/internal/infrastructure/catalog"
	"stream-donate.backend/internal/infrastructure/ledger"
	"stream-donate.backend/internal/interfaces/http/handlers"
	"stream-donate.backend/internal/noncemint"
	"stream-donate.backend/internal/usecases"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	assetCatalog := catalog.NewAssetCatalog(db)
	require.NoError(t, assetCatalog.Migrate(context.Background()))

	uc := usecases.NewDonationUsecase(
		ledger.NewMemoryLedger(5*time.Minute),
		assetCatalog,
		noncemint.New(),
		nil,
	)

	router := setupRouter(routeDeps{donationHandler: handlers.NewDonationHandler(uc)})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func postDonation(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/v1/donations", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestServer_CreateAndTrackDonation(t *testing.T) {
	srv := newTestServer(t)

	resp := postDonation(t, srv,
		`{"donationId":"d1","amount":"1.0","currency":"USDT","network":"ethereum","recipientAddress":"0x742d35Cc6634C0532925a3b844Bc454e4438f44e"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Nonce      string `json:"nonce"`
		PaymentURI string `json:"paymentUri"`
		Status     string `json:"status"`
		QRPath     string `json:"qrPath"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEmpty(t, created.Nonce)
	assert.Equal(t, "pending", created.Status)
	assert.Contains(t, created.PaymentURI, "transfer")

	// status endpoint
	statusResp, err := http.Get(srv.URL + "/api/v1/donations/" + created.Nonce + "/status")
	require.NoError(t, err)
	defer statusResp.Body.Close()
	require.Equal(t, http.StatusOK, statusResp.StatusCode)

	// QR image
	qrResp, err := http.Get(srv.URL + created.QRPath)
	require.NoError(t, err)
	defer qrResp.Body.Close()
	require.Equal(t, http.StatusOK, qrResp.StatusCode)
	assert.Equal(t, "image/png", qrResp.Header.Get("Content-Type"))
}

func TestServer_UnknownNonceIs404(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/donations/missing/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_UnsupportedAssetIs400(t *testing.T) {
	srv := newTestServer(t)

	resp := postDonation(t, srv,
		`{"donationId":"d1","amount":"1.0","currency":"DOGE","network":"ethereum","recipientAddress":"0x742d35Cc6634C0532925a3b844Bc454e4438f44e"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_InfoAndHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info struct {
		Service         string `json:"service"`
		SupportedAssets []any  `json:"supportedAssets"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "stream-donate-payments", info.Service)
	assert.NotEmpty(t, info.SupportedAssets)

	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestServer_StatusOverrideFlow(t *testing.T) {
	srv := newTestServer(t)

	resp := postDonation(t, srv,
		`{"donationId":"d2","amount":"0.5","currency":"ETH","network":"ethereum","recipientAddress":"0x742d35Cc6634C0532925a3b844Bc454e4438f44e"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Nonce string `json:"nonce"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	req, err := http.NewRequest(http.MethodPut,
		srv.URL+"/api/v1/donations/"+created.Nonce+"/status",
		strings.NewReader(`{"status":"confirmed","transactionRef":"0xabc"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer putResp.Body.Close()
	require.Equal(t, http.StatusOK, putResp.StatusCode)

	var status struct {
		Status         string `json:"status"`
		TransactionRef string `json:"transactionRef"`
	}
	require.NoError(t, json.NewDecoder(putResp.Body).Decode(&status))
	assert.Equal(t, "confirmed", status.Status)
	assert.Equal(t, "0xabc", status.TransactionRef)
}
