package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/optimark/optimark-api/internal/dto"
)

const scanEventBufferSize = 16

// ScanEventService fans scan lifecycle events out to review dashboards. The
// in-process broker feeds websocket subscribers on this node; Redis pub/sub
// and NATS relay the same events across nodes when configured.
type ScanEventService interface {
	PublishScanEvent(ctx context.Context, event dto.ScanEvent)
	Subscribe(examID uint) (<-chan dto.ScanEvent, func())
	Start(ctx context.Context)
}

type scanEventEnvelope struct {
	Source string        `json:"source"`
	Event  dto.ScanEvent `json:"event"`
	SentAt time.Time     `json:"sent_at"`
}

type scanEventService struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	broker       *scanEventBroker
	nodeID       string
}

type scanEventBroker struct {
	mu          sync.RWMutex
	subscribers map[chan dto.ScanEvent]uint
}

// NewScanEventService constructs the event fan-out. redisClient and natsConn
// may be nil; the in-process broker alone still serves local subscribers.
func NewScanEventService(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) ScanEventService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":scan_events"
		subject = channelBase + ".scan.events"
	}
	return &scanEventService{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "scan_event_service").Logger(),
		broker:       &scanEventBroker{subscribers: make(map[chan dto.ScanEvent]uint)},
		nodeID:       uuid.NewString(),
	}
}

func (s *scanEventService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *scanEventService) PublishScanEvent(ctx context.Context, event dto.ScanEvent) {
	s.broker.broadcast(event)

	envelope := scanEventEnvelope{Source: s.nodeID, Event: event, SentAt: time.Now().UTC()}
	payload, err := json.Marshal(envelope)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode scan event")
		return
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish scan event to redis")
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish scan event to nats")
		}
	}
}

// Subscribe registers a local listener. examID 0 receives events for every
// exam. The returned cancel function must be called when the listener goes
// away; slow listeners have events dropped rather than blocking publishers.
func (s *scanEventService) Subscribe(examID uint) (<-chan dto.ScanEvent, func()) {
	ch := make(chan dto.ScanEvent, scanEventBufferSize)
	s.broker.add(ch, examID)
	return ch, func() { s.broker.remove(ch) }
}

func (s *scanEventService) consumeRedis(ctx context.Context) {
	sub := s.redis.Subscribe(ctx, s.redisChannel)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			s.relay([]byte(msg.Payload))
		}
	}
}

func (s *scanEventService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.relay(msg.Data)
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to subscribe to nats scan events")
		return
	}
	defer func() { _ = sub.Unsubscribe() }()
	<-ctx.Done()
}

// relay feeds remote events into the local broker, skipping echoes of this
// node's own publishes.
func (s *scanEventService) relay(payload []byte) {
	var envelope scanEventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("dropping malformed scan event")
		return
	}
	if envelope.Source == s.nodeID {
		return
	}
	s.broker.broadcast(envelope.Event)
}

func (b *scanEventBroker) add(ch chan dto.ScanEvent, examID uint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[ch] = examID
}

func (b *scanEventBroker) remove(ch chan dto.ScanEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

func (b *scanEventBroker) broadcast(event dto.ScanEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, examID := range b.subscribers {
		if examID != 0 && examID != event.ExamID {
			continue
		}
		select {
		case ch <- event:
		default:
		}
	}
}
