package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visioninhope/BetM3/internal/crypto"
)

const (
	devKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

// verifySigned checks the signature headers the way the engine does.
func verifySigned(t *testing.T, r *http.Request, body []byte) {
	t.Helper()
	ts, err := strconv.ParseInt(r.Header.Get(crypto.HeaderTimestamp), 10, 64)
	require.NoError(t, err)
	claimed := common.HexToAddress(r.Header.Get(crypto.HeaderAddress))
	assert.Equal(t, devAddress, claimed.Hex())
	require.NoError(t, crypto.VerifyRequest(claimed, r.Method, r.URL.Path, ts, body, r.Header.Get(crypto.HeaderSignature)))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCreateSignsAndScalesStake(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/bets", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		verifySigned(t, r, body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1,"condition":"rain","total_stake_true":"100000000000000000000","total_stake_false":"0"}`))
	}))
	defer srv.Close()

	out, err := run(t, "--url", srv.URL, "--key", devKey,
		"create", "--stake", "100", "--condition", "rain", "--days", "3")
	require.NoError(t, err)

	assert.Equal(t, "100000000000000000000", got["stake"])
	assert.Equal(t, "rain", got["condition"])
	assert.Equal(t, float64(3), got["duration_days"])
	assert.Equal(t, true, got["prediction"])
	assert.Contains(t, out, `"total_stake_true": "100"`)
}

func TestDetailsNeedsNoKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bets/7", r.URL.Path)
		assert.Empty(t, r.Header.Get(crypto.HeaderSignature))
		_, _ = w.Write([]byte(`{"id":7,"total_stake_true":"1500000000000000000","total_stake_false":"0"}`))
	}))
	defer srv.Close()

	out, err := run(t, "--url", srv.URL, "--key", "", "--key-file", "", "details", "7")
	require.NoError(t, err)
	assert.Contains(t, out, `"total_stake_true": "1.5"`)
}

func TestAPIErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"bet has expired","code":"BetExpired","kind":"temporal"}`))
	}))
	defer srv.Close()

	_, err := run(t, "--url", srv.URL, "--key", devKey, "join", "4", "--stake", "1", "--prediction=false")
	require.Error(t, err)
	var apiErr *apiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "BetExpired", apiErr.Code)
}

func TestWriteWithoutKeyFails(t *testing.T) {
	_, err := run(t, "--url", "http://127.0.0.1:1", "--key", "", "--key-file", "", "finalize", "1")
	require.Error(t, err)
}

func TestEncryptKeyRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.json")
	out, err := run(t, "--key", devKey, "--password", "hunter2", "encrypt-key", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, devAddress)

	var gotAddr string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAddr = r.Header.Get(crypto.HeaderAddress)
		_, _ = w.Write([]byte(`{"bps":250}`))
	}))
	defer srv.Close()

	_, err = run(t, "--url", srv.URL, "--key", "", "--key-file", path, "--password", "hunter2", "set-yield-rate", "250")
	require.NoError(t, err)
	assert.Equal(t, devAddress, gotAddr)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestHumanizeNested(t *testing.T) {
	v := map[string]any{
		"bet_id": float64(1),
		"payouts": []any{
			map[string]any{"address": "0x1", "amount": "2000000000000000000", "principal": "1000000000000000000"},
		},
		"simulated_yield": "500000000000000000",
	}
	humanize(v, 18)
	p := v["payouts"].([]any)[0].(map[string]any)
	assert.Equal(t, "2", p["amount"])
	assert.Equal(t, "1", p["principal"])
	assert.Equal(t, "0.5", v["simulated_yield"])
	assert.Equal(t, "0x1", p["address"])
}
