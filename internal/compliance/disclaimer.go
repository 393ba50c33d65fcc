package compliance

import (
	"strings"
)

// DisclaimerLevel represents the verbosity of the disclaimer.
type DisclaimerLevel string

const (
	// DisclaimerShort is the shortest disclaimer.
	DisclaimerShort DisclaimerLevel = "short"
	// DisclaimerMedium is a moderate disclaimer.
	DisclaimerMedium DisclaimerLevel = "medium"
	// DisclaimerFull is the most comprehensive disclaimer.
	DisclaimerFull DisclaimerLevel = "full"
)

// Disclaimer templates
const (
	disclaimerShortText = "Gợi ý chuyên khoa, không phải chẩn đoán."

	disclaimerMediumText = "Đây là gợi ý chuyên khoa tự động, không thay thế chẩn đoán của bác sĩ."

	disclaimerFullText = "Đây là gợi ý chuyên khoa tự động dựa trên mô tả triệu chứng của bạn. Kết quả chỉ giúp chọn khoa khám phù hợp và không thay thế chẩn đoán hay tư vấn của bác sĩ."

	emergencyText = "Triệu chứng của bạn có dấu hiệu cấp cứu. Vui lòng gọi 115 hoặc đến khoa cấp cứu gần nhất ngay."
)

// DisclaimerConfig configures the disclaimer service.
type DisclaimerConfig struct {
	// Level determines which disclaimer template to use.
	Level DisclaimerLevel
	// Enabled controls whether the routing disclaimer is added. The emergency
	// notice is always added.
	Enabled bool
	// CustomText overrides the default template.
	CustomText string
}

// DefaultDisclaimerConfig returns sensible defaults.
func DefaultDisclaimerConfig() DisclaimerConfig {
	return DisclaimerConfig{
		Level:   DisclaimerMedium,
		Enabled: true,
	}
}

// DisclaimerService builds the advisory text returned with specialty recommendations.
type DisclaimerService struct {
	config DisclaimerConfig
}

// NewDisclaimerService creates a new disclaimer service.
func NewDisclaimerService(config DisclaimerConfig) *DisclaimerService {
	return &DisclaimerService{config: config}
}

// GetDisclaimerText returns the appropriate disclaimer text.
func (s *DisclaimerService) GetDisclaimerText() string {
	if s.config.CustomText != "" {
		return s.config.CustomText
	}

	switch s.config.Level {
	case DisclaimerShort:
		return disclaimerShortText
	case DisclaimerFull:
		return disclaimerFullText
	default:
		return disclaimerMediumText
	}
}

// Advisory returns the text shown next to a recommendation. Emergency
// matches put the emergency notice first.
func (s *DisclaimerService) Advisory(emergency bool) string {
	var parts []string
	if emergency {
		parts = append(parts, emergencyText)
	}
	if s.config.Enabled {
		parts = append(parts, s.GetDisclaimerText())
	}
	return strings.Join(parts, "\n\n")
}
