package onboarding

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	shared "github.com/agentflow/onboarding/pkg"
	"github.com/agentflow/onboarding/pkg/eventbus"
	"github.com/agentflow/onboarding/pkg/types"
)

// SendMessage appends to the agent's thread. The agent and any staff member
// with visibility of the agent may post; there is no edit or delete.
func (s *Service) SendMessage(ctx context.Context, actor types.Actor, agentID, content string) (*types.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("content", "required")
	}
	if utf8.RuneCountInString(content) > shared.MaxMessageLength {
		return nil, invalid("content", fmt.Sprintf("longer than %d characters", shared.MaxMessageLength))
	}

	agent, err := s.loadAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, agent); err != nil {
		return nil, err
	}

	msg := &types.Message{
		ID:        s.newID(),
		ThreadID:  agent.ID,
		SenderID:  actor.ID,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, storageErr("append message", err)
	}

	s.logger.Debug("Message sent", "agent_id", agent.ID, "actor_id", actor.ID, "message_id", msg.ID, "seq", msg.Seq)
	s.publish(eventbus.EventMessageCreated, agent, msg)
	s.recordActivity(ctx, agent, types.ActionMessageSent, actor.ID, "Sent a message",
		map[string]interface{}{"messageId": msg.ID})

	recipient := agent.ID
	if actor.ID == agent.ID {
		recipient = agent.ManagerID
	}
	s.notify(ctx, "message_sent", map[string]interface{}{
		"agentId":     agent.ID,
		"managerId":   agent.ManagerID,
		"senderId":    actor.ID,
		"recipientId": recipient,
		"messageId":   msg.ID,
		"preview":     preview(content, 120),
	})

	return msg, nil
}

// ListMessages returns the thread in creation order.
func (s *Service) ListMessages(ctx context.Context, actor types.Actor, agentID string) ([]*types.Message, error) {
	agent, err := s.loadAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, agent); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, agent.ID)
	if err != nil {
		return nil, storageErr("list messages", err)
	}
	return msgs, nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
