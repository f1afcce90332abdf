// Package types holds the shared data shapes exchanged between the discussion
// engine, the match store, and the speech and language-model providers.
package types

import "time"

// Role is a participant's secret role in a match.
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleSpy     Role = "spy"
)

// MatchStatus is the phase a match is in. Only StatusDiscussion enables the
// voice pipeline.
type MatchStatus string

const (
	StatusSetup      MatchStatus = "setup"
	StatusReveal     MatchStatus = "reveal"
	StatusDiscussion MatchStatus = "discussion"
	StatusVoting     MatchStatus = "voting"
	StatusFinished   MatchStatus = "finished"
)

// Participant is one seat at the table.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	IsAI bool   `json:"is_ai"`
	Role Role   `json:"role,omitempty"`
}

// MatchContext is the read-only view of the secret-word engine the language
// model is briefed with.
type MatchContext struct {
	Language      string   `json:"language"`
	Category      string   `json:"category"`
	Role          Role     `json:"role"`
	SecretWord    string   `json:"secret_word,omitempty"`
	HintText      string   `json:"hint_text,omitempty"`
	TeammateNames []string `json:"teammate_names,omitempty"`
}

// MatchSnapshot is a point-in-time read of the match document.
type MatchSnapshot struct {
	ID           string        `json:"id"`
	Status       MatchStatus   `json:"status"`
	Language     string        `json:"language"`
	Category     string        `json:"category"`
	SecretWord   string        `json:"secret_word,omitempty"`
	HintText     string        `json:"hint_text,omitempty"`
	Participants []Participant `json:"participants"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Participant returns the participant with the given id.
func (s *MatchSnapshot) Participant(id string) (Participant, bool) {
	if s == nil {
		return Participant{}, false
	}
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// DisplayName returns the participant's name, or the id when unknown.
func (s *MatchSnapshot) DisplayName(id string) string {
	if p, ok := s.Participant(id); ok && p.Name != "" {
		return p.Name
	}
	return id
}

// AIParticipants returns the AI seats in roster order.
func (s *MatchSnapshot) AIParticipants() []Participant {
	if s == nil {
		return nil
	}
	out := make([]Participant, 0, 1)
	for _, p := range s.Participants {
		if p.IsAI {
			out = append(out, p)
		}
	}
	return out
}

// ContextFor builds the language-model briefing for a participant. Spies get
// the category and hint, never the secret word.
func (s *MatchSnapshot) ContextFor(id string) MatchContext {
	if s == nil {
		return MatchContext{}
	}
	p, _ := s.Participant(id)
	role := p.Role
	if role == "" {
		role = RoleCitizen
	}
	mc := MatchContext{
		Language: s.Language,
		Category: s.Category,
		Role:     role,
	}
	if role == RoleSpy {
		mc.HintText = s.HintText
		for _, other := range s.Participants {
			if other.ID != id && other.Role == RoleSpy {
				mc.TeammateNames = append(mc.TeammateNames, other.Name)
			}
		}
	} else {
		mc.SecretWord = s.SecretWord
	}
	return mc
}
