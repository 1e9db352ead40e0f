package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"taskagent/internal/model/chat"
	"taskagent/internal/repository"
)

// MemoryConversationRepo 进程内对话仓库，未配置 MongoDB 时使用
type MemoryConversationRepo struct {
	mu    sync.RWMutex
	convs map[string]*chat.Conversation
}

var _ ConversationRepository = (*MemoryConversationRepo)(nil)

// NewMemoryConversationRepo 创建进程内对话仓库
func NewMemoryConversationRepo() *MemoryConversationRepo {
	return &MemoryConversationRepo{convs: make(map[string]*chat.Conversation)}
}

// Create 创建对话
func (r *MemoryConversationRepo) Create(_ context.Context, conv *chat.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.convs[conv.ID]; ok {
		return repository.ErrDuplicate
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}
	conv.UpdatedAt = conv.CreatedAt
	cp := *conv
	r.convs[conv.ID] = &cp
	return nil
}

// FindByID 根据ID查询，返回副本
func (r *MemoryConversationRepo) FindByID(_ context.Context, id string) (*chat.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.convs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *conv
	return &cp, nil
}

// SetTitleIfEmpty 仅在标题为空时写入
func (r *MemoryConversationRepo) SetTitleIfEmpty(_ context.Context, id, title string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.convs[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if conv.Title != "" {
		return false, nil
	}
	conv.Title = title
	conv.UpdatedAt = time.Now()
	return true, nil
}

// Touch 更新 updated_at
func (r *MemoryConversationRepo) Touch(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conv, ok := r.convs[id]; ok {
		conv.UpdatedAt = at
	}
	return nil
}

// ListByUser 按更新时间倒序
func (r *MemoryConversationRepo) ListByUser(_ context.Context, userID string, limit, offset int64) ([]*chat.Conversation, error) {
	r.mu.RLock()
	out := make([]*chat.Conversation, 0)
	for _, conv := range r.convs {
		if conv.UserID == userID {
			cp := *conv
			out = append(out, &cp)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, limit, offset), nil
}

// MemoryMessageRepo 进程内消息仓库，按插入顺序保存
type MemoryMessageRepo struct {
	mu   sync.RWMutex
	msgs map[string][]*chat.Message
}

var _ MessageRepository = (*MemoryMessageRepo)(nil)

// NewMemoryMessageRepo 创建进程内消息仓库
func NewMemoryMessageRepo() *MemoryMessageRepo {
	return &MemoryMessageRepo{msgs: make(map[string][]*chat.Message)}
}

// Append 追加消息
func (r *MemoryMessageRepo) Append(_ context.Context, msg *chat.Message) error {
	if msg.ID == "" {
		msg.ID = primitive.NewObjectID().Hex()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	cp := *msg

	r.mu.Lock()
	r.msgs[msg.ConversationID] = append(r.msgs[msg.ConversationID], &cp)
	r.mu.Unlock()
	return nil
}

// ordered 按时间正序，同一时间戳保持插入顺序
func (r *MemoryMessageRepo) ordered(conversationID string) []*chat.Message {
	r.mu.RLock()
	src := r.msgs[conversationID]
	out := make([]*chat.Message, len(src))
	for i, m := range src {
		cp := *m
		out[i] = &cp
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// FindRecent 最近 limit 条，时间倒序
func (r *MemoryMessageRepo) FindRecent(_ context.Context, conversationID string, limit int64) ([]*chat.Message, error) {
	all := r.ordered(conversationID)
	if limit > 0 && int64(len(all)) > limit {
		all = all[int64(len(all))-limit:]
	}
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// ListByConversation 时间正序分页
func (r *MemoryMessageRepo) ListByConversation(_ context.Context, conversationID string, limit, offset int64) ([]*chat.Message, error) {
	return page(r.ordered(conversationID), limit, offset), nil
}

// Count 对话消息数
func (r *MemoryMessageRepo) Count(_ context.Context, conversationID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.msgs[conversationID])), nil
}

func page[T any](items []T, limit, offset int64) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= int64(len(items)) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && int64(len(items)) > limit {
		items = items[:limit]
	}
	return items
}
