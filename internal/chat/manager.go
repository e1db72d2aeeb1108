package chat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultWindow 生成时带入的历史轮数
const DefaultWindow = 6

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn 一条对话记录
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History 按时间顺序的对话，调用方持有
type History []Turn

// Window 取最后 n 条
func (h History) Window(n int) History {
	if n <= 0 {
		return nil
	}
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

type Session struct {
	Turns      History   `json:"turns"`
	LastActive time.Time `json:"last_active"`
}

// Manager 控制台会话，持久化到 session.json
type Manager struct {
	mu          sync.Mutex
	session     *Session
	maxTurns    int
	sessionFile string
}

func NewManager(maxTurns int, sessionDir string) (*Manager, error) {
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	if maxTurns <= 0 {
		maxTurns = DefaultWindow
	}

	m := &Manager{
		maxTurns:    maxTurns,
		sessionFile: filepath.Join(sessionDir, "session.json"),
	}

	// 尝试从文件恢复
	if data, err := os.ReadFile(m.sessionFile); err == nil {
		var s Session
		if json.Unmarshal(data, &s) == nil {
			m.session = &s
		}
	}
	if m.session == nil {
		m.session = &Session{LastActive: time.Now()}
	}
	m.trim()
	return m, nil
}

// AddUser 记录用户消息
func (m *Manager) AddUser(content string) {
	m.add(RoleUser, content)
}

// AddAssistant 记录回复
func (m *Manager) AddAssistant(content string) {
	m.add(RoleAssistant, content)
}

func (m *Manager) add(role Role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session.Turns = append(m.session.Turns, Turn{Role: role, Content: content})
	m.session.LastActive = time.Now()
	m.trim()
}

// History 返回副本
func (m *Manager) History() History {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(History, len(m.session.Turns))
	copy(out, m.session.Turns)
	return out
}

// Reset 清空当前会话
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &Session{LastActive: time.Now()}
}

// Save 持久化到文件
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return os.WriteFile(m.sessionFile, data, 0644)
}

func (m *Manager) trim() {
	if len(m.session.Turns) > m.maxTurns {
		m.session.Turns = m.session.Turns[len(m.session.Turns)-m.maxTurns:]
	}
}
