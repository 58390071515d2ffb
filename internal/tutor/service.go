package tutor

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/pycoach/server/internal/domain"
	"github.com/pycoach/server/internal/llm"
)

// Service generates coach replies, arena challenges and flowcharts.
type Service struct {
	client    llm.Client
	chatModel string
	fastModel string
}

// NewService creates the tutor service. chatModel handles tutoring and
// problem generation; fastModel handles flowchart generation.
func NewService(client llm.Client, chatModel, fastModel string) *Service {
	return &Service{client: client, chatModel: chatModel, fastModel: fastModel}
}

// Chat streams a coach reply for the learner's prompt. The transcript on
// the session is read-only here; the handler appends both sides once the
// stream has fully completed.
func (s *Service) Chat(ctx context.Context, sess *domain.SessionState, prompt string) iter.Seq2[string, error] {
	sum := sess.Summary()
	chapter := ChapterFor(sum.Level)

	messages := make([]llm.Message, 0, len(sum.Transcript)+1)
	for _, m := range sum.Transcript {
		role := llm.RoleUser
		if m.Speaker == domain.SpeakerCoach {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Text})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})

	return s.client.Stream(ctx, llm.Request{
		System: fmt.Sprintf("You are a Python Tutor. Current Chapter: %s (%s). Keep answers short.",
			chapter.Heading(), chapter.Focus),
		Model:       s.chatModel,
		Messages:    messages,
		Temperature: 0.7,
	})
}

// ShouldVisualize reports whether a learner prompt asked for a flowchart.
func ShouldVisualize(prompt string) bool {
	lower := strings.ToLower(prompt)
	return strings.Contains(lower, "visualize") || strings.Contains(lower, "flowchart")
}

// GenerateDOT converts the given explanation into Graphviz DOT source
// using the fast model. When the reply carries no code fence the whole
// reply is treated as DOT.
func (s *Service) GenerateDOT(ctx context.Context, text string) (string, error) {
	reply, err := s.client.Complete(ctx, llm.Request{
		Model: s.fastModel,
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Content: "Convert this Python logic to Graphviz DOT code. " +
				"Return ONLY code inside ```dot``` blocks: " + text,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("generate flowchart: %w", err)
	}
	return llm.ExtractFencedBlock(reply, "dot"), nil
}

// GenerateProblem creates a fresh challenge statement for the level. Boss
// problems are the level exam: harder, and worth a full level of XP.
func (s *Service) GenerateProblem(ctx context.Context, level int, boss bool) (string, error) {
	chapter := ChapterFor(level)

	var prompt string
	if boss {
		prompt = fmt.Sprintf("Create a challenging exam-style coding problem covering %s (%s). "+
			"Requirements: 1. Clear Instructions. 2. Example Input/Output. Keep it short.",
			chapter.Heading(), chapter.Focus)
	} else {
		prompt = fmt.Sprintf("Create a beginner coding challenge for %s. "+
			"Requirements: 1. Clear Instructions. 2. Example Input/Output. Keep it short.",
			chapter.Heading())
	}

	problem, err := s.client.Complete(ctx, llm.Request{
		Model:       s.chatModel,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: 0.9,
	})
	if err != nil {
		return "", fmt.Errorf("generate problem: %w", err)
	}
	return strings.TrimSpace(problem), nil
}
