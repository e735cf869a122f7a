package chess

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/chess-web/internal/domain"
)

// memrepo keeps the archive in process memory; used when DATABASE_URL is empty.
type memrepo struct {
	mu sync.RWMutex

	nextID int64

	gamesByUser    map[string][]*domain.ChessGame // playerHash -> games, oldest first
	gamesBySession map[string]*domain.ChessGame
}

func NewMemoryRepository() Repository {
	return &memrepo{
		gamesByUser:    make(map[string][]*domain.ChessGame),
		gamesBySession: make(map[string]*domain.ChessGame),
	}
}

func (m *memrepo) InsertGame(_ context.Context, game *domain.ChessGame) (int64, error) {
	if game == nil {
		return 0, ErrDuplicateGame
	}
	key := strings.TrimSpace(game.SessionUUID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.gamesBySession[key]; exists {
		return 0, ErrDuplicateGame
	}

	m.nextID++
	stored := cloneGame(game)
	stored.ID = m.nextID

	m.gamesBySession[key] = stored
	m.gamesByUser[game.PlayerHash] = append(m.gamesByUser[game.PlayerHash], stored)
	return stored.ID, nil
}

func (m *memrepo) GetRecentGames(_ context.Context, playerHash string, limit int) ([]*domain.ChessGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.gamesByUser[playerHash]
	items := make([]*domain.ChessGame, 0, len(list))
	for _, g := range list {
		items = append(items, cloneGame(g))
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memrepo) GetGameBySession(_ context.Context, sessionUUID string, playerHash string) (*domain.ChessGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.gamesBySession[strings.TrimSpace(sessionUUID)]
	if !ok || g.PlayerHash != playerHash {
		return nil, nil
	}
	return cloneGame(g), nil
}

func cloneGame(g *domain.ChessGame) *domain.ChessGame {
	c := *g
	c.MovesUCI = append([]string(nil), g.MovesUCI...)
	c.MovesSAN = append([]string(nil), g.MovesSAN...)
	c.CapturedWhite = append([]string(nil), g.CapturedWhite...)
	c.CapturedBlack = append([]string(nil), g.CapturedBlack...)
	return &c
}
