package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleSnapshot() *MatchSnapshot {
	return &MatchSnapshot{
		ID:         "m1",
		Status:     StatusDiscussion,
		Language:   LanguageArabic,
		Category:   "places",
		SecretWord: "مطار",
		HintText:   "مكان فيه سفر",
		Participants: []Participant{
			{ID: "p1", Name: "محمد", Role: RoleCitizen},
			{ID: "p2", Name: "سارة", Role: RoleSpy},
			{ID: "ai1", Name: "العميل صقر", IsAI: true, Role: RoleSpy},
		},
	}
}

func TestContextFor_SpyGetsHintNotWord(t *testing.T) {
	mc := sampleSnapshot().ContextFor("ai1")
	assert.Equal(t, RoleSpy, mc.Role)
	assert.Empty(t, mc.SecretWord)
	assert.Equal(t, "مكان فيه سفر", mc.HintText)
	assert.Equal(t, []string{"سارة"}, mc.TeammateNames)
}

func TestContextFor_CitizenGetsWord(t *testing.T) {
	mc := sampleSnapshot().ContextFor("p1")
	assert.Equal(t, RoleCitizen, mc.Role)
	assert.Equal(t, "مطار", mc.SecretWord)
	assert.Empty(t, mc.HintText)
}

func TestDisplayNameAndAIParticipants(t *testing.T) {
	s := sampleSnapshot()
	assert.Equal(t, "محمد", s.DisplayName("p1"))
	assert.Equal(t, "ghost", s.DisplayName("ghost"))
	ais := s.AIParticipants()
	if assert.Len(t, ais, 1) {
		assert.Equal(t, "ai1", ais[0].ID)
	}

	var nilSnap *MatchSnapshot
	assert.Nil(t, nilSnap.AIParticipants())
	assert.Equal(t, "x", nilSnap.DisplayName("x"))
}
