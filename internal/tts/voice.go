package tts

import "strings"

// Gender 是粗粒度的语音偏好：男声、女声或不指定。
type Gender string

const (
	GenderUnspecified Gender = ""
	GenderFemale      Gender = "female"
	GenderMale        Gender = "male"
)

// Voice 是引擎提供的一个语音。
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Keywords 是按性别划分的语音名关键词表。
type Keywords struct {
	Female []string
	Male   []string
}

// ParsePreference 解析请求中的 voice 字段，不区分大小写。
// 无法识别的值返回 GenderUnspecified，即使用引擎默认语音。
func ParsePreference(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "female":
		return GenderFemale
	case "male":
		return GenderMale
	default:
		return GenderUnspecified
	}
}

func (k Keywords) forGender(g Gender) []string {
	switch g {
	case GenderFemale:
		return k.Female
	case GenderMale:
		return k.Male
	}
	return nil
}

// matches 判断语音显示名是否包含任一关键词（不区分大小写的子串匹配）。
func matches(name string, keywords []string) bool {
	name = strings.ToLower(name)
	for _, k := range keywords {
		if k != "" && strings.Contains(name, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// PickVoice 按偏好在 voices 中选择语音，按列表顺序第一个匹配的胜出。
// 未指定偏好或没有匹配时返回 false，调用方应使用引擎默认语音。
// 选男声时跳过命中女声关键词的语音，否则 "male" 会匹配到 "female"。
func PickVoice(voices []Voice, pref Gender, kw Keywords) (Voice, bool) {
	keywords := kw.forGender(pref)
	if len(keywords) == 0 {
		return Voice{}, false
	}
	for _, v := range voices {
		if pref == GenderMale && matches(v.Name, kw.Female) {
			continue
		}
		if matches(v.Name, keywords) {
			return v, true
		}
	}
	return Voice{}, false
}

// Classify 推断语音名对应的性别，供语音列表展示。
// 先判断女声，因为 "female" 包含子串 "male"。
func Classify(name string, kw Keywords) Gender {
	if matches(name, kw.Female) {
		return GenderFemale
	}
	if matches(name, kw.Male) {
		return GenderMale
	}
	return GenderUnspecified
}
