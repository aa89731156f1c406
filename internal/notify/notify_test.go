package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"
)

type published struct {
	channel string
	payload []byte
}

type fakePublisher struct {
	out chan published
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.out <- published{channel: channel, payload: message.([]byte)}
	return redis.NewIntResult(1, nil)
}

func TestRunPublishesToUserChannel(t *testing.T) {
	pub := &fakePublisher{out: make(chan published, 8)}
	svc := newService(pub, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	c := &models.Complaint{ID: "c-1", Title: "late settlement"}
	svc.NotifyAssignment("tc-1", c, "system")

	select {
	case got := <-pub.out:
		assert.Equal(t, "notify:tc-1", got.channel)
		var in intent
		require.NoError(t, json.Unmarshal(got.payload, &in))
		assert.Equal(t, "assignment", in.Kind)
		assert.Equal(t, "c-1", in.ComplaintID)
		assert.Equal(t, "late settlement", in.Title)
		assert.Equal(t, "system", in.Detail)
	case <-time.After(2 * time.Second):
		t.Fatal("no publish observed")
	}
}

func TestEnqueueDropsWhenBufferFull(t *testing.T) {
	// No consumer running: filling the buffer past capacity must not block.
	svc := newService(&fakePublisher{out: make(chan published)}, zerolog.Nop())

	c := &models.Complaint{ID: "c-1", Title: "late settlement"}
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(svc.ch)+10; i++ {
			svc.NotifyTaskEvent("tc-1", c, "accepted")
		}
		close(done)
	}()

	select {
	case <-done:
		assert.Len(t, svc.ch, cap(svc.ch))
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue blocked on a full buffer")
	}
}
