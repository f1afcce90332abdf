package discussion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  هَلْ   المكانُ مغلقٌ؟ ", "هل المكان مغلق?"},
		{"أنا إبن آدم", "انا ابن ادم"},
		{"مدرسة كبيرة", "مدرسه كبيره"},
		{"على مستشفى", "علي مستشفي"},
		{"جمـــيل!!", "جميل!"},
		{"Is it, EDIBLE?", "is it edible?"},
		{"...", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestAsNamedLine(t *testing.T) {
	assert.Equal(t, "محمد: مش متأكد", AsNamedLine("محمد", "مش متأكد"))
	assert.Equal(t, "مش متأكد", AsNamedLine("  ", "مش متأكد"))
}

func TestIsYesNoQuestion(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"هل ده الشيء ده يؤكل؟", true},
		{"قول وصف بسيط للمكان", false},
		{"هل المكان ده مغلق؟", true},
		{"ممكن تروح هناك بالعربية؟", true},
		{"انت شايف ايه؟", false},
		{"ايه رأيك في المكان؟", false},
		{"صح ولا غلط الكلام ده", true},
		{"Is it edible", true},
		{"Do you go there often?", true},
		{"Where do you go?", false},
		{"انت بتروح المكان ده امتى؟", false},
		{"هو بيفتح متى؟", false},
		{"هل هي مأكولة؟", true},
		{"صح أم خطأ", true},
		{"The place is big", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsYesNoQuestion(tt.text), tt.text)
	}
}

func TestClassifyUtterance_AddressedBinaryQuestion(t *testing.T) {
	got := ClassifyUtterance("يا العميل صقر هل المكان ده مغلق؟", ClassifyContext{ActiveAIName: "العميل صقر"})
	assert.Equal(t, Classification{
		Kind:               KindQuestion,
		AddressedToAI:      true,
		ExpectsReplyFromAI: true,
		IsBinaryQuestion:   true,
	}, got)
}

func TestClassifyUtterance_ShortAnswerWhilePending(t *testing.T) {
	got := ClassifyUtterance("مش متأكد", ClassifyContext{ActiveAIName: "العميل صقر", PendingTargetName: "محمد"})
	assert.Equal(t, KindAnswer, got.Kind)
	assert.False(t, got.ExpectsReplyFromAI)
	assert.False(t, got.AddressedToAI)
}

func TestClassifyUtterance_NameFarFromStartIsNotAddress(t *testing.T) {
	got := ClassifyUtterance("انا بصراحة شايف ان الكلام اللي قاله العميل صقر غريب", ClassifyContext{ActiveAIName: "العميل صقر"})
	assert.False(t, got.AddressedToAI)
	assert.Equal(t, KindStatement, got.Kind)
}

func TestClassifyUtterance_EnglishWhQuestionToAI(t *testing.T) {
	got := ClassifyUtterance("Hey Falcon, where would you go on a weekend?", ClassifyContext{ActiveAIName: "Falcon"})
	assert.Equal(t, KindQuestion, got.Kind)
	assert.True(t, got.AddressedToAI)
	assert.True(t, got.ExpectsReplyFromAI)
	assert.False(t, got.IsBinaryQuestion)
}

func TestClassifyUtterance_Empty(t *testing.T) {
	assert.Equal(t, Classification{Kind: KindStatement}, ClassifyUtterance("  ", ClassifyContext{}))
}

func TestClassifyUtterance_WhenOpenerWithAlefMaksura(t *testing.T) {
	for _, text := range []string{"متى بتروح هناك", "امتى بتروح هناك"} {
		got := ClassifyUtterance(text, ClassifyContext{ActiveAIName: "صقر"})
		assert.Equal(t, KindQuestion, got.Kind, text)
		assert.False(t, got.IsBinaryQuestion, text)
	}
}

func TestWordListsMatchNormalizer(t *testing.T) {
	for _, set := range []map[string]bool{strongOpeners, weakOpeners, whOpeners, vocatives, yesNoWords} {
		for w := range set {
			assert.Equal(t, w, Normalize(w))
		}
	}
	for _, list := range [][]string{binaryIdioms, hedgePhrases} {
		for _, p := range list {
			assert.Equal(t, p, Normalize(p))
		}
	}
}
