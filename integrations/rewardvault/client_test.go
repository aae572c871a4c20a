package rewardvault

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistributeRewards(t *testing.T) {
	var received distributeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/rewards/distribute", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL + "/")
	err := client.DistributeRewards([]uint64{7, 9}, []*big.Int{big.NewInt(25), big.NewInt(15)})
	require.NoError(t, err)
	require.Equal(t, []uint64{7, 9}, received.IDs)
	require.Equal(t, []string{"25", "15"}, received.Amounts)
}

func TestDistributeRewardsSurfacesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "vault ledger closed", http.StatusConflict)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.DistributeRewards([]uint64{1}, []*big.Int{big.NewInt(5)})
	require.ErrorContains(t, err, "409")
	require.ErrorContains(t, err, "vault ledger closed")
}

func TestDistributeRewardsValidatesInput(t *testing.T) {
	client := NewClient("http://localhost:0")
	require.Error(t, client.DistributeRewards([]uint64{1, 2}, []*big.Int{big.NewInt(5)}))
	require.Error(t, client.DistributeRewards([]uint64{1}, []*big.Int{nil}))

	var unset *Client
	require.Error(t, unset.DistributeRewards(nil, nil))
}
