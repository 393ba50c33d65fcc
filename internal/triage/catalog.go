package triage

// Specialty is one routable medical specialty.
type Specialty struct {
	Code string
	Name string
}

// DefaultSpecialty is returned when no keyword matches.
var DefaultSpecialty = Specialty{Code: "GENERAL", Name: "Nội tổng quát"}

// catalog order is the tie-break order for equal scores.
var catalog = []Specialty{
	{Code: "CARDIOLOGY", Name: "Tim mạch"},
	{Code: "NEUROLOGY", Name: "Thần kinh"},
	{Code: "RESPIRATORY", Name: "Hô hấp"},
	{Code: "GASTROENTEROLOGY", Name: "Tiêu hóa"},
	{Code: "ORTHOPEDICS", Name: "Cơ xương khớp"},
	{Code: "DERMATOLOGY", Name: "Da liễu"},
	{Code: "ENT", Name: "Tai mũi họng"},
	{Code: "OPHTHALMOLOGY", Name: "Mắt"},
	{Code: "ENDOCRINOLOGY", Name: "Nội tiết"},
	{Code: "UROLOGY", Name: "Tiết niệu"},
	{Code: "OBSTETRICS", Name: "Sản phụ khoa"},
	{Code: "PEDIATRICS", Name: "Nhi khoa"},
	{Code: "PSYCHIATRY", Name: "Tâm thần"},
	{Code: "DENTISTRY", Name: "Răng hàm mặt"},
	DefaultSpecialty,
}

type keywordRule struct {
	keyword string
	codes   []string
}

// Keywords are matched as lower-case NFC substrings.
var keywordRules = []keywordRule{
	{"đau ngực", []string{"CARDIOLOGY"}},
	{"ngực", []string{"CARDIOLOGY"}},
	{"bệnh tim", []string{"CARDIOLOGY"}},
	{"tim đập", []string{"CARDIOLOGY"}},
	{"hồi hộp", []string{"CARDIOLOGY"}},
	{"huyết áp", []string{"CARDIOLOGY"}},
	{"chest pain", []string{"CARDIOLOGY"}},
	{"heart", []string{"CARDIOLOGY"}},
	{"palpitation", []string{"CARDIOLOGY"}},

	{"đau đầu", []string{"NEUROLOGY"}},
	{"chóng mặt", []string{"NEUROLOGY", "ENT"}},
	{"tê bì", []string{"NEUROLOGY"}},
	{"mất ngủ", []string{"NEUROLOGY", "PSYCHIATRY"}},
	{"co giật", []string{"NEUROLOGY"}},
	{"headache", []string{"NEUROLOGY"}},
	{"dizz", []string{"NEUROLOGY", "ENT"}},
	{"numb", []string{"NEUROLOGY"}},

	{"khó thở", []string{"RESPIRATORY", "CARDIOLOGY"}},
	{"bị ho", []string{"RESPIRATORY"}},
	{"ho khan", []string{"RESPIRATORY"}},
	{"ho có đờm", []string{"RESPIRATORY"}},
	{"ho kéo dài", []string{"RESPIRATORY"}},
	{"phổi", []string{"RESPIRATORY"}},
	{"hen suyễn", []string{"RESPIRATORY"}},
	{"cough", []string{"RESPIRATORY"}},
	{"short of breath", []string{"RESPIRATORY", "CARDIOLOGY"}},
	{"shortness of breath", []string{"RESPIRATORY", "CARDIOLOGY"}},

	{"đau bụng", []string{"GASTROENTEROLOGY"}},
	{"tiêu chảy", []string{"GASTROENTEROLOGY"}},
	{"buồn nôn", []string{"GASTROENTEROLOGY"}},
	{"táo bón", []string{"GASTROENTEROLOGY"}},
	{"dạ dày", []string{"GASTROENTEROLOGY"}},
	{"ợ chua", []string{"GASTROENTEROLOGY"}},
	{"stomach", []string{"GASTROENTEROLOGY"}},
	{"diarrhea", []string{"GASTROENTEROLOGY"}},
	{"nausea", []string{"GASTROENTEROLOGY"}},

	{"đau lưng", []string{"ORTHOPEDICS"}},
	{"đau khớp", []string{"ORTHOPEDICS"}},
	{"đau vai", []string{"ORTHOPEDICS"}},
	{"đau gối", []string{"ORTHOPEDICS"}},
	{"gãy xương", []string{"ORTHOPEDICS"}},
	{"back pain", []string{"ORTHOPEDICS"}},
	{"joint", []string{"ORTHOPEDICS"}},

	{"ngứa", []string{"DERMATOLOGY"}},
	{"phát ban", []string{"DERMATOLOGY"}},
	{"mụn", []string{"DERMATOLOGY"}},
	{"nổi mẩn", []string{"DERMATOLOGY"}},
	{"rash", []string{"DERMATOLOGY"}},
	{"itch", []string{"DERMATOLOGY"}},
	{"acne", []string{"DERMATOLOGY"}},

	{"đau họng", []string{"ENT"}},
	{"viêm họng", []string{"ENT"}},
	{"ù tai", []string{"ENT"}},
	{"đau tai", []string{"ENT"}},
	{"nghẹt mũi", []string{"ENT"}},
	{"sổ mũi", []string{"ENT"}},
	{"sore throat", []string{"ENT"}},
	{"earache", []string{"ENT"}},

	{"mờ mắt", []string{"OPHTHALMOLOGY"}},
	{"đau mắt", []string{"OPHTHALMOLOGY"}},
	{"đỏ mắt", []string{"OPHTHALMOLOGY"}},
	{"blurred vision", []string{"OPHTHALMOLOGY"}},

	{"tiểu đường", []string{"ENDOCRINOLOGY"}},
	{"tuyến giáp", []string{"ENDOCRINOLOGY"}},
	{"khát nước", []string{"ENDOCRINOLOGY"}},
	{"diabetes", []string{"ENDOCRINOLOGY"}},
	{"thyroid", []string{"ENDOCRINOLOGY"}},

	{"tiểu buốt", []string{"UROLOGY"}},
	{"tiểu rắt", []string{"UROLOGY"}},
	{"sỏi thận", []string{"UROLOGY"}},
	{"urinat", []string{"UROLOGY"}},

	{"mang thai", []string{"OBSTETRICS"}},
	{"kinh nguyệt", []string{"OBSTETRICS"}},
	{"có thai", []string{"OBSTETRICS"}},
	{"pregnan", []string{"OBSTETRICS"}},

	{"trẻ em", []string{"PEDIATRICS"}},
	{"con tôi", []string{"PEDIATRICS"}},
	{"em bé", []string{"PEDIATRICS"}},
	{"my child", []string{"PEDIATRICS"}},

	{"lo âu", []string{"PSYCHIATRY"}},
	{"trầm cảm", []string{"PSYCHIATRY"}},
	{"căng thẳng", []string{"PSYCHIATRY"}},
	{"anxiety", []string{"PSYCHIATRY"}},
	{"depress", []string{"PSYCHIATRY"}},

	{"đau răng", []string{"DENTISTRY"}},
	{"sâu răng", []string{"DENTISTRY"}},
	{"chảy máu chân răng", []string{"DENTISTRY"}},
	{"toothache", []string{"DENTISTRY"}},

	{"sốt", []string{"GENERAL"}},
	{"mệt mỏi", []string{"GENERAL"}},
	{"fever", []string{"GENERAL"}},
	{"fatigue", []string{"GENERAL"}},
}

var emergencyKeywords = []string{
	"đau ngực",
	"khó thở",
	"ngất",
	"co giật",
	"đột quỵ",
	"liệt nửa người",
	"chảy máu nhiều",
	"nôn ra máu",
	"chest pain",
	"shortness of breath",
	"short of breath",
	"unconscious",
	"faint",
	"seizure",
	"stroke",
	"severe bleeding",
}
