package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"muichiro-nexus/pkg/tasks"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	messages  []kafka.Message
	committed []int64
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.messages) == 0 {
		return kafka.Message{}, context.Canceled
	}
	m := f.messages[0]
	f.messages = f.messages[1:]
	return m, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

type memAttempts struct {
	counts map[string]int64
}

func (m *memAttempts) Incr(_ context.Context, key string) (int64, error) {
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memAttempts) Reset(_ context.Context, key string) error {
	delete(m.counts, key)
	return nil
}

type scriptedProcessor struct {
	failures map[string]int
	calls    map[string]int
}

func (p *scriptedProcessor) Process(_ context.Context, task tasks.FileProcessingTask) error {
	p.calls[task.FileID]++
	if p.calls[task.FileID] <= p.failures[task.FileID] {
		return errors.New("transient")
	}
	return nil
}

func message(t *testing.T, offset int64, fileID string) kafka.Message {
	t.Helper()
	b, err := json.Marshal(tasks.FileProcessingTask{FileID: fileID})
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

func TestConsumer_RetriesThenCommits(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		message(t, 1, "ok"),
		message(t, 2, "flaky"),
		message(t, 3, "broken"),
		{Offset: 4, Value: []byte("not json")},
	}}
	proc := &scriptedProcessor{
		failures: map[string]int{"flaky": 1, "broken": 10},
		calls:    map[string]int{},
	}
	attempts := &memAttempts{counts: map[string]int64{}}
	c := &Consumer{reader: reader, processor: proc, attempts: attempts}

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []int64{1, 2, 3, 4}, reader.committed)
	assert.Equal(t, 1, proc.calls["ok"])
	assert.Equal(t, 2, proc.calls["flaky"])
	assert.Equal(t, MaxAttempts, proc.calls["broken"])
	assert.Empty(t, attempts.counts)
	assert.True(t, reader.closed)
}
