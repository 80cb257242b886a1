package api

import (
	"context"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"parking-status-backend/internal/ledger"
	"parking-status-backend/internal/occupancy"
	"parking-status-backend/internal/store"
)

// SimulatorControl starts and stops the demo simulator.
type SimulatorControl interface {
	Start(ctx context.Context) bool
	Stop() bool
	Running() bool
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ServiceInfo is reported by the root endpoint.
type ServiceInfo struct {
	Version    string
	Broker     string
	Topics     []string
	TotalSpots int
}

// Deps are the components the handlers are built on. Simulator, MQTT and
// WebPush may be nil.
type Deps struct {
	Store     store.Store
	Engine    *occupancy.Engine
	Query     *occupancy.Query
	Ledger    *ledger.Ledger
	Simulator SimulatorControl
	MQTT      ConnectionStatus
	WebPush   *webpush.Options
	Info      ServiceInfo
	Log       *zap.Logger

	// BaseContext outlives requests; background work started from a
	// handler (the simulator) runs under it.
	BaseContext context.Context
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	engine    *occupancy.Engine
	query     *occupancy.Query
	ledger    *ledger.Ledger
	simulator SimulatorControl
	mqtt      ConnectionStatus
	webpush   *webpush.Options
	info      ServiceInfo
	log       *zap.Logger
	baseCtx   context.Context
	now       func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	baseCtx := d.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Handler{
		store:     d.Store,
		engine:    d.Engine,
		query:     d.Query,
		ledger:    d.Ledger,
		simulator: d.Simulator,
		mqtt:      d.MQTT,
		webpush:   d.WebPush,
		info:      d.Info,
		log:       log.Named("api"),
		baseCtx:   baseCtx,
		now:       time.Now,
	}
}
