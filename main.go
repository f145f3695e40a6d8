package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/chative-booking/agent/agents/receptionist"
	statex "github.com/tanpawarit/chative-booking/agent/state"
	"github.com/tanpawarit/chative-booking/pkg/calendar"
	"github.com/tanpawarit/chative-booking/pkg/calendar/calcom"
	configx "github.com/tanpawarit/chative-booking/pkg/config"
	_ "github.com/tanpawarit/chative-booking/pkg/logger/autoload"
)

// line is one driver command read from stdin.
type line struct {
	SessionID string         `json:"session_id"`
	TurnID    string         `json:"turn_id"`
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
	End       bool           `json:"end"`
}

type reply struct {
	SessionID    string `json:"session_id"`
	Reply        string `json:"reply,omitempty"`
	Stage        string `json:"stage,omitempty"`
	Paused       bool   `json:"paused,omitempty"`
	DateAdjusted bool   `json:"date_adjusted,omitempty"`
	Ended        bool   `json:"ended,omitempty"`
	Error        string `json:"error,omitempty"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	calCfg := configx.MustNew[calcom.Config]("CALCOM")
	agentCfg := configx.MustNew[receptionist.Config]("BOOKING")

	cal := calcom.MustNew(*calCfg)
	defer cal.Close()

	if err := cal.Initialize(ctx); err != nil {
		var initErr *calendar.AdapterInitError
		if !errors.As(err, &initErr) {
			log.Fatal().Err(err).Msg("calendar initialization failed")
		}
		log.Warn().Err(err).Int("duration_minutes", cal.DurationMinutes()).Msg("calendar metadata unavailable, continuing with default duration")
	}

	svc, err := receptionist.New(newStore(), cal, *agentCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build receptionist")
	}

	defaultSession := uuid.NewString()
	log.Info().Str("session_id", defaultSession).Msg("booking driver ready; reading JSON lines from stdin")

	enc := json.NewEncoder(os.Stdout)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var in line
		if err := json.Unmarshal([]byte(raw), &in); err != nil {
			_ = enc.Encode(reply{Error: "invalid json: " + err.Error()})
			continue
		}
		if strings.TrimSpace(in.SessionID) == "" {
			in.SessionID = defaultSession
		}

		_ = enc.Encode(handle(ctx, svc, in))
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("read stdin")
	}
}

func handle(ctx context.Context, svc *receptionist.Service, in line) reply {
	out := reply{SessionID: in.SessionID}
	if in.End {
		if err := svc.End(ctx, in.SessionID); err != nil {
			out.Error = err.Error()
			return out
		}
		out.Ended = true
		return out
	}

	resp, err := svc.Handle(ctx, receptionist.Request{
		SessionID: in.SessionID,
		TurnID:    in.TurnID,
		Tool:      in.Tool,
		Args:      in.Args,
	})
	switch {
	case errors.Is(err, receptionist.ErrSessionEnded):
		out.Ended = true
	case err != nil:
		out.Error = err.Error()
	default:
		out.Reply = resp.Reply
		out.Stage = resp.Stage
		out.Paused = resp.Paused
		out.DateAdjusted = resp.DateAdjusted
	}
	return out
}

// newStore uses Upstash when UPSTASH_REDIS_URL is set and keeps sessions in
// memory otherwise.
func newStore() statex.Store {
	if strings.TrimSpace(os.Getenv("UPSTASH_REDIS_URL")) == "" {
		return statex.NewMemoryStore()
	}
	cfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
	store, err := statex.NewUpstashRedisStore(*cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build upstash session store")
	}
	return store
}
