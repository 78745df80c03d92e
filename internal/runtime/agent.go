// Package runtime wires every cocoon component behind a single Agent
// value: the signaling link, PTY/Silk/proxy/filesystem/WebRTC managers,
// and the ADI router with its built-in services. There is no global
// mutable state — everything an operation needs hangs off the Agent it
// was dispatched from.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/adi-family/cocoon/internal/adi"
	"github.com/adi-family/cocoon/internal/adi/tasks"
	"github.com/adi-family/cocoon/internal/adi/tools"
	"github.com/adi-family/cocoon/internal/config"
	"github.com/adi-family/cocoon/internal/execd"
	"github.com/adi-family/cocoon/internal/identity"
	"github.com/adi-family/cocoon/internal/proxy"
	"github.com/adi-family/cocoon/internal/ptymgr"
	"github.com/adi-family/cocoon/internal/rtc"
	"github.com/adi-family/cocoon/internal/signaling"
	"github.com/adi-family/cocoon/internal/silk"
)

const agentVersion = "1.0.0"

// Agent owns one cocoon instance's runtime state: identity, the signaling
// link, every session manager, and the ADI router.
type Agent struct {
	cfg *config.Config
	log *slog.Logger

	store    *identity.Store
	secret   string
	deviceID string

	link     *signaling.Link
	executor *execd.Executor
	ptyMgr   *ptymgr.Manager
	silkMgr  *silk.Manager
	proxyReg *proxy.Registry
	router   *adi.Router
	rtcMgr   *rtc.Manager

	tasksSvc *tasks.Service
	toolsSvc *tools.Service

	adiSubsMu  sync.Mutex
	adiSubStop map[string]context.CancelFunc
}

// New constructs an Agent from cfg, loading or generating the device
// identity and wiring every component together. It performs no network
// I/O; call Run to connect.
func New(cfg *config.Config, log *slog.Logger) (*Agent, error) {
	if log == nil {
		log = slog.Default()
	}
	if _, err := config.EnsureDataDir(cfg.DataDir); err != nil {
		return nil, err
	}

	store := identity.NewStore(config.IdentitySubdir(cfg.DataDir), func(format string, args ...any) {
		log.Warn(fmt.Sprintf(format, args...))
	})
	secret, deviceID, err := store.LoadOrCreate(envSecret())
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}

	a := &Agent{
		cfg:        cfg,
		log:        log,
		store:      store,
		secret:     secret,
		deviceID:   deviceID,
		executor:   execd.NewExecutor(config.OutputSubdir(cfg.DataDir)),
		proxyReg:   proxy.NewRegistry(cfg.Services),
		router:     adi.NewRouter(),
		adiSubStop: make(map[string]context.CancelFunc),
	}

	a.link = signaling.NewLink(cfg.SignalingURL, secret, cfg.SetupToken, cfg.Name, agentVersion, a.onFrame)
	a.link.SetDeviceID(deviceID)
	a.link.OnRegistered = a.onRegistered

	a.ptyMgr = ptymgr.NewManager(func(payload any) { a.write(payload) })
	a.silkMgr = silk.NewManager(a.ptyMgr)
	a.rtcMgr = rtc.NewManager(rtc.BuildICEServers(), a.link, a.handleFileChannelRequest, log)

	tasksSvc, err := tasks.NewService("tasks", config.TasksDBPath(cfg.DataDir))
	if err != nil {
		return nil, fmt.Errorf("create tasks service: %w", err)
	}
	a.tasksSvc = tasksSvc
	a.toolsSvc = tools.NewService("tools")
	a.router.Register(a.tasksSvc)
	a.router.Register(a.toolsSvc)

	return a, nil
}

func envSecret() string {
	return os.Getenv("COCOON_SECRET")
}

// Run connects the signaling link and serves frames until ctx is
// cancelled or the link fails with a fatal registration error. The Link
// itself sends a Deregister frame on every clean shutdown path, while its
// connection is still open; there is nothing left to send one through by
// the time Run returns.
func (a *Agent) Run(ctx context.Context) error {
	go a.forwardServicesChanged(ctx)

	err := a.link.Run(ctx)

	a.rtcMgr.CloseAll()
	a.toolsSvc.CloseProviders()
	return err
}

func (a *Agent) onRegistered(deviceID string) {
	if err := a.store.SaveDeviceID(a.secret, deviceID); err != nil {
		a.log.Warn("failed to persist device id", "err", err)
	}
	a.log.Info("registered", "device_id", deviceID)
}

// write is the PTY manager's upstream callback; it fires from the PTY
// read goroutine, never the Link's own goroutine, so it is always safe
// to call synchronously.
func (a *Agent) write(payload any) {
	if err := a.link.Write(context.Background(), payload); err != nil {
		a.log.Warn("pty output send failed", "err", err)
	}
}
