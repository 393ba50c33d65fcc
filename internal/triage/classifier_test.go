package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"
)

func TestClassifyChestPainIsCardiologyEmergency(t *testing.T) {
	analysis := Analyze("đau ngực")

	require.NotEmpty(t, analysis.Recommendations)
	assert.Equal(t, "CARDIOLOGY", analysis.Recommendations[0].SpecialtyCode)
	assert.True(t, analysis.EmergencyDetected)
	assert.True(t, analysis.Recommendations[0].Emergency)
	assert.Equal(t, 1, analysis.Recommendations[0].Rank)
	assert.InDelta(t, 2.0/3.0, analysis.Recommendations[0].Confidence, 1e-9)
}

func TestClassifyUnknownTextFallsBackToGeneral(t *testing.T) {
	for _, text := range []string{"", "   ", "xin chào bác sĩ", "hello there"} {
		recs := Classify(text)
		require.Len(t, recs, 1, text)
		assert.Equal(t, DefaultSpecialty.Code, recs[0].SpecialtyCode)
		assert.Equal(t, 0.5, recs[0].Confidence)
		assert.False(t, recs[0].Emergency)
	}
}

func TestClassifyIsScoreDescending(t *testing.T) {
	inputs := []string{
		"Tôi bị khó thở và đau ngực, hồi hộp",
		"đau đầu, chóng mặt, mất ngủ",
		"ho khan kéo dài, sốt, đau họng",
		"My child has a rash and fever",
		"đau bụng buồn nôn tiêu chảy",
	}
	for _, text := range inputs {
		recs := Classify(text)
		require.NotEmpty(t, recs, text)
		assert.LessOrEqual(t, len(recs), maxRecommendations)
		for i := 1; i < len(recs); i++ {
			assert.GreaterOrEqual(t, recs[i-1].Confidence, recs[i].Confidence, text)
			assert.Equal(t, i+1, recs[i].Rank)
		}
		for _, r := range recs {
			assert.GreaterOrEqual(t, r.Confidence, 0.5)
			assert.LessOrEqual(t, r.Confidence, 1.0)
		}
	}
}

func TestClassifyTiesFollowKeywordTableOrder(t *testing.T) {
	// "chóng mặt" scores NEUROLOGY and ENT once each.
	recs := Classify("chóng mặt")
	require.Len(t, recs, 2)
	assert.Equal(t, "NEUROLOGY", recs[0].SpecialtyCode)
	assert.Equal(t, "ENT", recs[1].SpecialtyCode)

	// CARDIOLOGY precedes RESPIRATORY in the specialty catalog, but the
	// matching rule lists RESPIRATORY first.
	recs = Classify("khó thở")
	require.Len(t, recs, 2)
	assert.Equal(t, "RESPIRATORY", recs[0].SpecialtyCode)
	assert.Equal(t, "CARDIOLOGY", recs[1].SpecialtyCode)
}

func TestClassifyConfidenceSaturates(t *testing.T) {
	recs := Classify("khó thở, đau ngực, bệnh tim")
	require.NotEmpty(t, recs)
	assert.Equal(t, "CARDIOLOGY", recs[0].SpecialtyCode)
	assert.Equal(t, 1.0, recs[0].Confidence)
}

func TestClassifyHandlesDecomposedInput(t *testing.T) {
	recs := Classify(norm.NFD.String("ĐAU NGỰC"))
	require.NotEmpty(t, recs)
	assert.Equal(t, "CARDIOLOGY", recs[0].SpecialtyCode)
	assert.True(t, IsEmergency(norm.NFD.String("Đau ngực")))
}

func TestEmergencyIndependentOfSpecialty(t *testing.T) {
	analysis := Analyze("patient fainted")
	assert.True(t, analysis.EmergencyDetected)
	require.Len(t, analysis.Recommendations, 1)
	assert.Equal(t, DefaultSpecialty.Code, analysis.Recommendations[0].SpecialtyCode)
	assert.True(t, analysis.Recommendations[0].Emergency)
}

func TestLookup(t *testing.T) {
	sp, ok := Lookup(" cardiology ")
	assert.True(t, ok)
	assert.Equal(t, "Tim mạch", sp.Name)

	_, ok = Lookup("ASTROLOGY")
	assert.False(t, ok)
}
