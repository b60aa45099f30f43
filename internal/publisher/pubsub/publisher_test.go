package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/crawler"
)

func newFakeServer(t *testing.T) option.ClientOption {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return option.WithGRPCConn(conn)
}

func TestPublisher_PublishEvent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn := newFakeServer(t)

	admin, err := pubsub.NewClient(ctx, "mini-project", conn)
	require.NoError(t, err)
	topic, err := admin.CreateTopic(ctx, "promotions")
	require.NoError(t, err)
	sub, err := admin.CreateSubscription(ctx, "ingest", pubsub.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	pub, err := New(ctx, "mini-project", "promotions", conn)
	require.NoError(t, err)

	event := crawler.PromotionEvent{
		RunID:       "run-1",
		SourceURL:   "https://ww2.mini.pw.edu.pl/files/regulamin.pdf",
		Object:      "gs://mini-corpus/final_storage/regulamin.pdf",
		ContentType: "application/pdf",
	}
	id, err := pub.Publish(ctx, event)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	received := make(chan *pubsub.Message, 1)
	recvCtx, stop := context.WithCancel(ctx)
	go func() {
		_ = sub.Receive(recvCtx, func(_ context.Context, msg *pubsub.Message) {
			msg.Ack()
			select {
			case received <- msg:
			default:
			}
			stop()
		})
	}()

	select {
	case msg := <-received:
		var got crawler.PromotionEvent
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, event, got)
		assert.Equal(t, "run-1", msg.Attributes["run_id"])
		assert.Equal(t, "application/pdf", msg.Attributes["content_type"])
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}

	require.NoError(t, pub.Close())
}

func TestNew_MissingTopic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn := newFakeServer(t)

	_, err := New(ctx, "mini-project", "absent", conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	_, err = New(ctx, "", "promotions", conn)
	require.Error(t, err)
}

func TestPublisher_Unconfigured(t *testing.T) {
	_, err := NewWithTopic(nil).Publish(context.Background(), crawler.PromotionEvent{})
	require.Error(t, err)
	require.NoError(t, NewWithTopic(nil).Close())
}
