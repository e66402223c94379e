package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Claude Code keeps one JSONL transcript per session under
// ~/.claude/projects/<encoded-cwd>/<session-id>.jsonl; Gemini CLI keeps one
// JSON chat file per session under ~/.gemini/tmp/<hash>/chats/. Discovery
// scans both and records sessions the store does not know yet, titled by the
// latest user prompt.

// claudeLine is one JSONL record; content is either a plain string or a
// list of content blocks.
type claudeLine struct {
	SessionID string `json:"sessionId"`
	Message   struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// parseClaudeLatestUserPrompt returns the content of the last user message
// in a Claude session transcript.
func parseClaudeLatestUserPrompt(data []byte) (string, error) {
	var latest string

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec claudeLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if rec.Message.Role != "user" || len(rec.Message.Content) == 0 {
			continue
		}
		if text := contentText(rec.Message.Content); text != "" {
			latest = text
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan transcript: %w", err)
	}
	return latest, nil
}

// contentText flattens a message content field: a JSON string is returned
// as-is, a block list yields its text blocks joined.
func contentText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && strings.TrimSpace(b.Text) != "" {
			parts = append(parts, strings.TrimSpace(b.Text))
		}
	}
	return strings.Join(parts, " ")
}

// geminiSession is the Gemini CLI chat file shape.
type geminiSession struct {
	SessionID string `json:"sessionId"`
	Messages  []struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	} `json:"messages"`
}

// parseGeminiLatestUserPrompt returns the content of the last user message
// in a Gemini chat file.
func parseGeminiLatestUserPrompt(data []byte) (string, error) {
	var sess geminiSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return "", fmt.Errorf("parse gemini session: %w", err)
	}
	var latest string
	for _, m := range sess.Messages {
		if m.Type == "user" && strings.TrimSpace(m.Content) != "" {
			latest = strings.TrimSpace(m.Content)
		}
	}
	return latest, nil
}

// ImportClaude scans a Claude projects directory and records unknown
// sessions. The session id is the transcript file stem. Returns the number
// of sessions added.
func (s *Store) ImportClaude(projectsDir string) (int, error) {
	projects, err := os.ReadDir(projectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read claude projects dir: %w", err)
	}

	added := 0
	for _, project := range projects {
		if !project.IsDir() {
			continue
		}
		dir := filepath.Join(projectsDir, project.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".jsonl") {
				continue
			}
			sessionID := strings.TrimSuffix(f.Name(), ".jsonl")
			known, err := s.Has(sessionID)
			if err != nil {
				return added, err
			}
			if known {
				continue
			}

			path := filepath.Join(dir, f.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				log.Printf("[HISTORY] Skipping unreadable transcript %s: %v", path, err)
				continue
			}
			title, err := parseClaudeLatestUserPrompt(data)
			if err != nil || title == "" {
				continue
			}

			entry := &Entry{SessionID: sessionID, Provider: "claude", Title: title}
			if info, err := f.Info(); err == nil {
				entry.CreatedAt = info.ModTime()
				entry.LastActive = info.ModTime()
			}
			if err := s.Record(entry); err != nil {
				return added, err
			}
			added++
		}
	}
	return added, nil
}

// ImportGemini scans a Gemini tmp directory (one subdirectory per project,
// chat files under chats/) and records unknown sessions. Returns the number
// of sessions added.
func (s *Store) ImportGemini(tmpDir string) (int, error) {
	projects, err := os.ReadDir(tmpDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read gemini tmp dir: %w", err)
	}

	added := 0
	for _, project := range projects {
		if !project.IsDir() {
			continue
		}
		chatsDir := filepath.Join(tmpDir, project.Name(), "chats")
		files, err := os.ReadDir(chatsDir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			path := filepath.Join(chatsDir, f.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				log.Printf("[HISTORY] Skipping unreadable chat file %s: %v", path, err)
				continue
			}

			var sess geminiSession
			if err := json.Unmarshal(data, &sess); err != nil {
				continue
			}
			sessionID := sess.SessionID
			if sessionID == "" {
				sessionID = strings.TrimSuffix(f.Name(), ".json")
			}
			known, err := s.Has(sessionID)
			if err != nil {
				return added, err
			}
			if known {
				continue
			}
			title, err := parseGeminiLatestUserPrompt(data)
			if err != nil || title == "" {
				continue
			}

			entry := &Entry{SessionID: sessionID, Provider: "gemini", Title: title}
			if info, err := f.Info(); err == nil {
				entry.CreatedAt = info.ModTime()
				entry.LastActive = info.ModTime()
			}
			if err := s.Record(entry); err != nil {
				return added, err
			}
			added++
		}
	}
	return added, nil
}
