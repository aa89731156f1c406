// Package notify delivers best-effort notifications about state transitions.
// Intents are handed off on a channel and published to Redis pub/sub by a
// worker goroutine; a failed or dropped notification never unwinds the state
// change that produced it.
package notify

import (
	"context"
	"encoding/json"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Dispatcher is what the services see. All methods are fire-and-forget.
type Dispatcher interface {
	NotifyAssignment(userID string, c *models.Complaint, assignerName string)
	NotifyTaskEvent(userID string, c *models.Complaint, event string)
	NotifyEscalation(userID string, c *models.Complaint, reason string)
}

// publisher is the slice of the redis client the worker needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type intent struct {
	UserID      string `json:"userId"`
	Kind        string `json:"kind"` // assignment | task_event | escalation
	ComplaintID string `json:"complaintId"`
	Title       string `json:"title"`
	Detail      string `json:"detail"`
}

type Service struct {
	pub publisher
	ch  chan intent
	log zerolog.Logger
}

func NewService(rdb *redis.Client, log zerolog.Logger) *Service {
	return newService(rdb, log)
}

func newService(pub publisher, log zerolog.Logger) *Service {
	return &Service{
		pub: pub,
		ch:  make(chan intent, 256),
		log: log,
	}
}

// Run consumes intents until ctx is cancelled. Publish failures are logged
// and swallowed.
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-s.ch:
			payload, err := json.Marshal(in)
			if err != nil {
				s.log.Error().Err(err).Msg("notify: marshal intent")
				continue
			}
			if err := s.pub.Publish(ctx, "notify:"+in.UserID, payload).Err(); err != nil {
				s.log.Warn().Err(err).
					Str("user", in.UserID).
					Str("kind", in.Kind).
					Msg("notify: publish failed")
			}
		}
	}
}

// enqueue never blocks: when the buffer is full the intent is dropped with a
// log line, keeping callers' transactions unaffected.
func (s *Service) enqueue(in intent) {
	select {
	case s.ch <- in:
	default:
		s.log.Warn().Str("user", in.UserID).Str("kind", in.Kind).Msg("notify: queue full, dropped")
	}
}

func (s *Service) NotifyAssignment(userID string, c *models.Complaint, assignerName string) {
	s.enqueue(intent{UserID: userID, Kind: "assignment", ComplaintID: c.ID, Title: c.Title, Detail: assignerName})
}

func (s *Service) NotifyTaskEvent(userID string, c *models.Complaint, event string) {
	s.enqueue(intent{UserID: userID, Kind: "task_event", ComplaintID: c.ID, Title: c.Title, Detail: event})
}

func (s *Service) NotifyEscalation(userID string, c *models.Complaint, reason string) {
	s.enqueue(intent{UserID: userID, Kind: "escalation", ComplaintID: c.ID, Title: c.Title, Detail: reason})
}
