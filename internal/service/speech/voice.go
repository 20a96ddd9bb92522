package speech

import "strings"

// DefaultVoice 角色指定了不支持的音色时使用的默认音色
const DefaultVoice = "Kore"

var prebuiltVoices = []string{"Kore", "Puck", "Charon", "Fenrir", "Zephyr"}

// Voices 列出预置音色名称
func Voices() []string {
	out := make([]string, len(prebuiltVoices))
	copy(out, prebuiltVoices)
	return out
}

// ResolveVoice 返回音色名的规范写法，无法识别时返回 DefaultVoice
func ResolveVoice(name string) string {
	name = strings.TrimSpace(name)
	for _, v := range prebuiltVoices {
		if strings.EqualFold(v, name) {
			return v
		}
	}
	return DefaultVoice
}
