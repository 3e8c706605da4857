package hsds

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sioux/hsds-agent/internal/config"
	"github.com/sioux/hsds-agent/internal/logging"
)

// Pinger polls the HSDS REST endpoint so operators see connectivity problems
// in the log before an upload hits them. It never touches the upload path.
type Pinger struct {
	conn     config.Connection
	interval time.Duration
	client   *resty.Client
	log      *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewPinger(conn config.Connection, interval time.Duration, logger *slog.Logger) *Pinger {
	return &Pinger{
		conn:     conn,
		interval: interval,
		client:   resty.New().SetTimeout(10 * time.Second),
		log:      logging.Component(logger, "pinger"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Ping issues one GET /about.
func (p *Pinger) Ping(ctx context.Context) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBasicAuth(p.conn.Username, p.conn.Password).
		Get(p.conn.Endpoint + "/about")
	if err != nil {
		return fmt.Errorf("ping %s: %w", p.conn.Endpoint, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("ping %s: unexpected status %d", p.conn.Endpoint, resp.StatusCode())
	}
	return nil
}

// Start launches the heartbeat loop. A zero interval disables it.
func (p *Pinger) Start() {
	p.startOnce.Do(func() {
		if p.interval <= 0 {
			close(p.done)
			return
		}
		go p.loop()
	})
}

// Stop signals the loop and waits for it to exit.
func (p *Pinger) Stop() {
	p.Start()
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

func (p *Pinger) loop() {
	defer close(p.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-p.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ticker.C:
			if err := p.Ping(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				p.log.Warn("heartbeat failed", "endpoint", p.conn.Endpoint, "err", err)
				healthy = false
			} else if !healthy {
				p.log.Info("heartbeat recovered", "endpoint", p.conn.Endpoint)
				healthy = true
			}
		case <-p.stop:
			return
		}
	}
}
