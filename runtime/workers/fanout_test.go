package workers

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"roomcast/domain"
	"roomcast/domain/event"
	"roomcast/mocks"
)

func TestFanoutWorker_DeliversToEverySink(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	events := make(chan event.DomainEvent, 4)
	received := make(chan event.DomainEvent, 8)

	sink1 := mocks.NewMockEventSink(ctrl)
	sink2 := mocks.NewMockEventSink(ctrl)
	consume := func(_ context.Context, e event.DomainEvent) error {
		received <- e
		return nil
	}
	sink1.EXPECT().Consume(gomock.Any(), gomock.Any()).DoAndReturn(consume).Times(2)
	sink2.EXPECT().Consume(gomock.Any(), gomock.Any()).DoAndReturn(consume).Times(2)

	worker := NewFanoutWorker(slog.Default(), events, time.Second, sink1, sink2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	for i := 0; i < 2; i++ {
		events <- event.MessagePosted{Message: domain.Message{
			ID:      uuid.New(),
			RoomID:  "general",
			Content: fmt.Sprintf("msg-%d", i),
		}}
	}

	for i := 0; i < 4; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			req.Fail("sink did not receive event in time")
		}
	}
}

func TestFanoutWorker_FailingSinkDoesNotStopOthers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	events := make(chan event.DomainEvent, 1)
	received := make(chan event.DomainEvent, 1)

	failing := mocks.NewMockEventSink(ctrl)
	healthy := mocks.NewMockEventSink(ctrl)
	failing.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(fmt.Errorf("index closed")).Times(1)
	healthy.EXPECT().Consume(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e event.DomainEvent) error {
		received <- e
		return nil
	}).Times(1)

	worker := NewFanoutWorker(slog.Default(), events, time.Second, failing, healthy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	events <- event.MessageRemoved{Room: "general", ID: uuid.New()}

	select {
	case <-received:
	case <-time.After(time.Second):
		req.Fail("healthy sink starved by failing sink")
	}
}

func TestFanoutWorker_ClosedChannelTerminates(t *testing.T) {
	req := require.New(t)

	events := make(chan event.DomainEvent)
	worker := NewFanoutWorker(slog.Default(), events, time.Second)

	done := make(chan error, 1)
	go func() { done <- worker.Run(context.Background()) }()
	close(events)

	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("worker should return when the channel closes")
	}
}
