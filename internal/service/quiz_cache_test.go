package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestCachedQuizReaderReadThrough(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	repo := newFakeQuizRepo(testQuizDefinition())
	reader := NewCachedQuizReader(repo, client, time.Minute, testLogger())

	first, err := reader.GetWithQuestions(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "Go Basics", first.Title)
	require.Equal(t, 1, repo.reads)

	// The second read is served from the cache.
	second, err := reader.GetWithQuestions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, second.Questions, 3)
	require.Equal(t, 1, repo.reads)

	require.True(t, server.Exists("quiz:snapshot:1"))
}

func TestCachedQuizReaderExpiry(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	repo := newFakeQuizRepo(testQuizDefinition())
	reader := NewCachedQuizReader(repo, client, time.Minute, testLogger())

	_, err = reader.GetWithQuestions(context.Background(), 1)
	require.NoError(t, err)

	server.FastForward(2 * time.Minute)

	_, err = reader.GetWithQuestions(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, repo.reads)
}

func TestCachedQuizReaderDropsCorruptEntry(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	require.NoError(t, server.Set("quiz:snapshot:1", "not json"))

	repo := newFakeQuizRepo(testQuizDefinition())
	reader := NewCachedQuizReader(repo, client, time.Minute, testLogger())

	quiz, err := reader.GetWithQuestions(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "Go Basics", quiz.Title)
	require.Equal(t, 1, repo.reads)

	// The bad entry was replaced with a fresh snapshot.
	stored, err := server.Get("quiz:snapshot:1")
	require.NoError(t, err)
	require.NotEqual(t, "not json", stored)
}

func TestCachedQuizReaderNilClientFallsBack(t *testing.T) {
	repo := newFakeQuizRepo(testQuizDefinition())
	reader := NewCachedQuizReader(repo, nil, time.Minute, testLogger())

	quiz, err := reader.GetWithQuestions(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, uint(1), quiz.ID)
	require.Equal(t, 1, repo.reads)
}
