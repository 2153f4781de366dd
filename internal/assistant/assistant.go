// Package assistant отвечает на сообщения чата, упоминающие ассистента,
// передавая вопрос и превью файлов комнаты внешнему сервису генерации.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/thereayou/studdy-space/internal/models"
)

// MentionToken триггер ассистента в тексте сообщения, без учета регистра
const MentionToken = "@ai"

// SenderName имя, под которым публикуются ответы ассистента
const SenderName = "Study Assistant"

// previewLimit длина превью содержимого файла в контексте запроса
const previewLimit = 500

// Generator внешний сервис генерации ответов.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Assistant struct {
	gen Generator
	log *logrus.Entry
}

func New(gen Generator) *Assistant {
	return &Assistant{
		gen: gen,
		log: logrus.WithField("component", "assistant"),
	}
}

// Triggered проверяет, упоминает ли текст ассистента.
func Triggered(text string) bool {
	return strings.Contains(strings.ToLower(text), MentionToken)
}

// Reply строит ответ ассистента на сообщение пользователя в контексте
// файлов комнаты. Возвращает nil, если сообщение не упоминает
// ассистента.
func (a *Assistant) Reply(ctx context.Context, room *models.Room, msg *models.ChatMessage) (*models.ChatMessage, error) {
	if !Triggered(msg.Text) {
		return nil, nil
	}

	text, err := a.gen.Generate(ctx, buildPrompt(room.Files, msg.Text))
	if err != nil {
		return nil, fmt.Errorf("assistant: generate: %w", err)
	}

	return &models.ChatMessage{
		ID:         uuid.New(),
		RoomID:     room.ID,
		SenderID:   uuid.Nil,
		SenderName: SenderName,
		Text:       text,
		CreatedAt:  time.Now(),
		IsAI:       true,
	}, nil
}

func buildPrompt(files []models.FileContent, question string) string {
	var sb strings.Builder
	sb.WriteString("You are an elite academic study assistant.\n")
	sb.WriteString("The users are in a private collaborative study room.\n")
	sb.WriteString("Here is the context of their current shared documents:\n")

	for _, f := range files {
		sb.WriteString("File: ")
		sb.WriteString(f.Name)
		sb.WriteString("\nContent Preview: ")
		sb.WriteString(preview(f.Content))
		sb.WriteString("\n\n")
	}

	sb.WriteString("User Question: ")
	sb.WriteString(question)
	return sb.String()
}

func preview(content string) string {
	if len(content) <= previewLimit {
		return content
	}
	return content[:previewLimit]
}
