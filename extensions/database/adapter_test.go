package database

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liteclaw/abstractbot/internal/bot"
)

func TestInboundAndRepliesAreStored(t *testing.T) {
	store := &MemoryStore{}
	var medium string
	a := New(&Config{BotName: "helper"}, store, func(ctx context.Context, e bot.ConversationEvent) error {
		medium, _ = bot.Medium(ctx)
		user, _ := bot.UserID(ctx)
		_, err := bot.Reply(ctx, "hello "+user+", you said "+e.Text)
		return err
	}, zerolog.Nop())

	_, err := a.HandleRequest(context.Background(), Request{From: "alice", Text: "hi"})
	require.NoError(t, err)

	records := store.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "alice", records[0].From)
	assert.Equal(t, "hi", records[0].Text)
	assert.Len(t, records[0].Key, 36)
	assert.NotZero(t, records[0].Time)
	assert.Equal(t, "helper", records[1].From)
	assert.Equal(t, "hello alice, you said hi", records[1].Text)
	assert.NotEqual(t, records[0].Key, records[1].Key)
	assert.Equal(t, "websocket", medium)
}

func TestSpinnerFramesStored(t *testing.T) {
	store := &MemoryStore{}
	a := New(&Config{}, store, func(ctx context.Context, _ bot.ConversationEvent) error {
		_, err := bot.WithSpinner(ctx, "thinking", func(context.Context) (string, error) { return "", nil })
		return err
	}, zerolog.Nop())

	_, err := a.HandleRequest(context.Background(), Request{From: "bob", Text: "x"})
	require.NoError(t, err)

	records := store.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "bot", records[1].From)
	assert.True(t, *records[1].Spinner)
	assert.False(t, *records[2].Spinner)
	assert.Equal(t, records[1].Key, records[2].Key)
}

type failingStore struct{}

func (failingStore) Store(context.Context, Record) error { return errors.New("disk full") }

func TestStoreFailure(t *testing.T) {
	called := false
	a := New(&Config{}, failingStore{}, func(context.Context, bot.ConversationEvent) error {
		called = true
		return nil
	}, zerolog.Nop())

	_, err := a.HandleRequest(context.Background(), Request{From: "bob", Text: "x"})
	assert.ErrorContains(t, err, "disk full")
	assert.False(t, called)

	_, err = a.HandleRequest(context.Background(), Request{Text: "x"})
	assert.Error(t, err)
}

func TestFileStoreAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.jsonl")
	fs := NewFileStore(path)
	require.NoError(t, fs.Store(context.Background(), Record{From: "a", Key: "1", Text: "one", Time: 1}))
	require.NoError(t, fs.Store(context.Background(), Record{From: "b", Key: "2", Text: "two", Time: 2}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var got []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		got = append(got, r)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[1].Text)
}

func TestStartNeedsStore(t *testing.T) {
	assert.Error(t, New(&Config{}, nil, nil, zerolog.Nop()).Start(context.Background()))
}
