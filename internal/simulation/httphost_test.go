package simulation

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidder/internal/api"
	"github.com/patrickwarner/openbidder/internal/config"
	"github.com/patrickwarner/openbidder/internal/engine"
	"github.com/patrickwarner/openbidder/internal/observability"
)

func TestRunOverHTTP(t *testing.T) {
	cfg := config.Config{Strategy: config.StrategyCapacity, MinimalSpendCap: 1, PricePrecision: 3, RandomSeed: 3}
	eng, err := engine.New(cfg, zap.NewNop(), observability.NewNoOpRegistry(), nil)
	require.NoError(t, err)
	srv := httptest.NewServer(api.NewRouter(api.NewServer(zap.NewNop(), eng, nil, nil)))
	defer srv.Close()

	host := NewHTTPHost(srv.URL + "/")
	sum, err := Run(context.Background(), host, NewMarket(DefaultMarketConfig()), 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Periods)
	assert.Equal(t, 5, eng.Period())

	require.NoError(t, host.Finish(context.Background()))
	assert.Equal(t, 0, eng.Period())
}

func TestHTTPHostSurfacesErrors(t *testing.T) {
	eng, err := engine.New(config.Config{PricePrecision: 3}, nil, nil, nil)
	require.NoError(t, err)
	srv := httptest.NewServer(api.NewRouter(api.NewServer(zap.NewNop(), eng, nil, nil)))
	defer srv.Close()

	_, err = NewHTTPHost(srv.URL).Tick(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
}
